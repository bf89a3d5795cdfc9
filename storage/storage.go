package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrInvalidName = errors.New("invalid file name")

// Slug transliterates name to lowercase ASCII words joined by '-'.
func Slug(name string) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return "file"
}

// Local stores uploaded pictures in a directory.
type Local struct {
	dir string
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// FileName builds "<slug>-<uuid>.<ext>" from the client supplied name.
func FileName(original string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(original), "."))
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	name := Slug(base) + "-" + uuid.NewString()
	if ext = strings.NewReplacer("-", "", "_", "").Replace(slug.Make(ext)); ext != "" {
		name += "." + ext
	}
	return name
}

// Save copies r into the directory and returns the stored file name.
func (l *Local) Save(ctx context.Context, r io.Reader, original string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	name := FileName(original)
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (l *Local) Remove(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

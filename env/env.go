package env

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type convertible interface {
	~[]byte | ~string
}

var ErrMissing = errors.New("missing required env")

type Config struct {
	HS256Secret       []byte
	DBConn            string
	AppPort           string
	ServerID          string
	RedisAddr         string
	NsqdTCPAddr       string
	NsqlookupdAddr    string
	ImgDirectory      string
	LogLevel          string
	FollowingCacheTTL time.Duration
}

func required[T convertible](dst *T, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return fmt.Errorf("%w: %s", ErrMissing, key)
	}
	*dst = T(v)
	return nil
}

func optional[T convertible](dst *T, key, def string) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	*dst = T(v)
}

// Load reads an optional .env file then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := required(&cfg.HS256Secret, "HS256_SECRET"); err != nil {
		return nil, err
	}
	if err := required(&cfg.DBConn, "DB_CONN"); err != nil {
		return nil, err
	}
	optional(&cfg.AppPort, "APP_PORT", "8080")
	optional(&cfg.ServerID, "SERVER_ID", "server-1")
	optional(&cfg.RedisAddr, "REDIS_ADDR", "localhost:6379")
	optional(&cfg.NsqdTCPAddr, "NSQD_TCP_ADDR", "localhost:4150")
	optional(&cfg.NsqlookupdAddr, "NSQLOOKUPD_ADDR", "localhost:4161")
	optional(&cfg.ImgDirectory, "IMG_DIRECTORY", "./public/img")
	optional(&cfg.LogLevel, "LOG_LEVEL", "info")

	cfg.FollowingCacheTTL = 10 * time.Minute
	if v := os.Getenv("FOLLOWING_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			if secs, convErr := strconv.Atoi(v); convErr == nil {
				d = time.Duration(secs) * time.Second
			} else {
				return nil, fmt.Errorf("FOLLOWING_CACHE_TTL: %w", err)
			}
		}
		cfg.FollowingCacheTTL = d
	}
	return cfg, nil
}

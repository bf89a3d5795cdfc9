package user

import (
	"strconv"
	"strings"

	"github.com/puoklam/social-graph-backend/db/model"
)

type InCreateUser struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (in *InCreateUser) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// InEditUser is read from a form; an empty password keeps the current one.
type InEditUser struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"omitempty,min=8,max=72"`
}

func (in *InEditUser) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

type OutListUsers struct {
	Users  []model.User `json:"users"`
	Search string       `json:"search"`
}

type OutGetUser struct {
	*model.User
	FollowingCount int   `json:"following_count"`
	FollowerCount  int64 `json:"follower_count"`
	FollowedByMe   *bool `json:"followed_by_me,omitempty"`
}

func uintString(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

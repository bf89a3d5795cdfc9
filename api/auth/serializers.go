package auth

import "github.com/puoklam/social-graph-backend/db/model"

type InSignin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OutSignin struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	User        *model.User `json:"user"`
}

package token

import "errors"

var (
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenExpired   = errors.New("token expired")
	ErrSecretTooShort = errors.New("token secret too short")
)

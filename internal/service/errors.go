package service

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserExists          = errors.New("user already exists")
	ErrInactiveUser        = errors.New("user account is inactive")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrOAuthDisabled       = errors.New("oauth sign-in is not configured")
	ErrUnverifiedEmail     = errors.New("oauth account email is not verified")
)

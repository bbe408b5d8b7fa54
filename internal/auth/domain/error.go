package domain

import "errors"

var (
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidUsername    = errors.New("invalid_username")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountExists      = errors.New("account_exists")
	ErrAccountNotFound    = errors.New("account_not_found")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrInvalidSession     = errors.New("invalid_session")
)

package auth

import "errors"

var (
	// ErrInvalidToken indicates the bearer token failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnauthorized indicates the caller's role does not permit the operation.
	ErrUnauthorized = errors.New("auth: operation not permitted")
)

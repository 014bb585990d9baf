package auth

import "github.com/pkg/errors"

var (
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
	ErrMissingSecret        = errors.New("token secret is empty")
	ErrPasswordMismatch     = errors.New("password does not match")
)

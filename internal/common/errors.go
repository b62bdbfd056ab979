package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Validation errors.
	ErrorInvalidArgument = errors.New("invalid argument")

	// Payment intent lifecycle errors.
	ErrInvalidIntentState = errors.New("invalid payment intent state")

	// Connection token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

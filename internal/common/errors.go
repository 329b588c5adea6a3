// Package common holds the error taxonomy shared by the auth service, the
// message router and the HTTP layer. Adapters wrap their causes with one of
// these sentinels so callers can branch with errors.Is.
package common

import "errors"

var (
	// session errors
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUserNotFound    = errors.New("user not found")

	// login verification errors
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")

	// adapter errors
	ErrClassifier   = errors.New("classifier error")
	ErrStore        = errors.New("store error")
	ErrNotification = errors.New("notification error")

	// input validation
	ErrInvalidEmail = errors.New("email required")
	ErrEmptyMessage = errors.New("message required")
)

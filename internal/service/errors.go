package service

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAccessDenied    = errors.New("plan does not allow app use")
	ErrQuotaExceeded   = errors.New("generation quota exhausted")
	ErrInvalidPlatform = errors.New("unsupported platform")
)

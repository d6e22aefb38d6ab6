package validator

import "errors"

var (
	ErrEmptyURL       = errors.New("destination cannot be empty")
	ErrInvalidURL     = errors.New("invalid destination URL")
	ErrInvalidScheme  = errors.New("destination must use http or https scheme")
	ErrHostNotAllowed = errors.New("destination host is not on the allowlist")
)

// Package application contains use-case orchestration services.
package application

import "errors"

// ErrInvalidInput indicates a request failed validation before reaching storage.
var ErrInvalidInput = errors.New("invalid input")

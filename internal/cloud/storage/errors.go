package storage

import "errors"

// Common storage errors
var (
	// ErrAccountNotFound indicates that device account was not found in storage
	ErrAccountNotFound = errors.New("device account not found")

	// ErrAccountExists indicates that the device is already registered
	ErrAccountExists = errors.New("device account already exists")

	// ErrTokenNotFound indicates that refresh token was not found
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrUnknownTable indicates a table that is not mirrored in the cloud
	ErrUnknownTable = errors.New("unknown table")

	// ErrInvalidMutation indicates a mutation that cannot be applied at all
	ErrInvalidMutation = errors.New("invalid mutation")
)

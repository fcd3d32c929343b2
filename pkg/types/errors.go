package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrInvalidRoot is returned when the repository root cannot be resolved.
	ErrInvalidRoot = errors.New("invalid root")

	// ErrInvalidIntent is returned for an unknown intent name.
	ErrInvalidIntent = errors.New("invalid intent")

	// ErrPathOutsideRoot is returned when a path resolves outside the root.
	ErrPathOutsideRoot = errors.New("path outside root")

	// ErrUnreadable is returned when a file is missing or cannot be read.
	ErrUnreadable = errors.New("unreadable or missing")

	// ErrVCSTimeout is returned when a version control command times out.
	ErrVCSTimeout = errors.New("vcs command timed out")

	// ErrVCSFailed is returned when a version control command fails.
	ErrVCSFailed = errors.New("vcs command failed")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)

package config

import "errors"

var (
	// ErrNilPointer indicates a nil configuration struct was passed.
	ErrNilPointer = errors.New("config: nil pointer passed to Load")

	// ErrParsingConfig indicates environment parsing failed, typically a
	// missing required variable or a malformed value.
	ErrParsingConfig = errors.New("config: failed to parse environment")
)

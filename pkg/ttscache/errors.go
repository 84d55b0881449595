package ttscache

import "errors"

// Common errors for the speech cache.
var (
	// ErrNotConfigured is returned when an operation runs before Configure.
	ErrNotConfigured = errors.New("speech cache is not configured")

	// ErrMissingSessionDefaults means preload was called for a session
	// with no recorded service, language, and voice.
	ErrMissingSessionDefaults = errors.New("no generation defaults recorded for session")

	// ErrGenerationFailed means the generation call returned an error.
	ErrGenerationFailed = errors.New("artifact generation failed")

	// ErrGenerationTimeout means the generation call outlived the
	// configured timeout and was abandoned.
	ErrGenerationTimeout = errors.New("artifact generation timed out")

	// ErrEmptyResult means the generator resolved without an artifact.
	ErrEmptyResult = errors.New("generator returned no artifact")

	// ErrInvalidConfig means the configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

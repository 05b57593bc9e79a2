package questions

import "errors"

var (
	ErrNotFound     = errors.New("question not found")
	ErrForbidden    = errors.New("question belongs to another user")
	ErrInvalidInput = errors.New("invalid input")

	// ErrGenerationFailed means the model answered but no usable question survived validation.
	ErrGenerationFailed = errors.New("question generation produced no valid questions")

	ErrResumeUnreadable = errors.New("resume file could not be read")
)

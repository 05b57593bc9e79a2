package resumes

import "errors"

var (
	ErrNotFound        = errors.New("resume not found")
	ErrForbidden       = errors.New("resume belongs to another user")
	ErrInvalidInput    = errors.New("invalid input")
	ErrConflict        = errors.New("resume was modified concurrently")
	ErrFileNotUploaded = errors.New("Resume file not uploaded")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

package object

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a storage key has no object behind it.
	ErrNotFound = errors.New("object not found")

	ErrPresignUnsupported = errors.New("store does not support presigned uploads")
)

// Object describes a stored blob.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// Store saves and retrieves resume files.
type Store interface {
	// Save writes r under the owner's namespace and returns the generated key.
	Save(ctx context.Context, ownerID, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// PresignedUpload is a short-lived URL for a direct browser upload.
type PresignedUpload struct {
	URL       string
	Key       string
	ExpiresIn time.Duration
}

// Presigner is implemented by stores that accept direct uploads.
type Presigner interface {
	PresignPut(ctx context.Context, ownerID, fileName string, expires time.Duration) (PresignedUpload, error)
}

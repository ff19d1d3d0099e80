package object

import (
	"context"
	"io"
	"time"
)

// ObjectStore saves and retrieves binary objects grouped by namespace.
type ObjectStore interface {
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, storageKey string) error
}

// Presigner is implemented by stores that can hand out time-limited
// download links instead of streaming through the API.
type Presigner interface {
	PresignGet(ctx context.Context, storageKey, downloadName string, expires time.Duration) (string, error)
}

// Package attachments stores generated images in the Firebase Storage
// bucket and returns their download URLs.
package attachments

import (
	"context"
	"fmt"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// Bucket uploads objects to one bucket.
type Bucket struct {
	handle *storage.BucketHandle
	name   string
}

// New wraps a bucket handle. name must be the bucket's name.
func New(handle *storage.BucketHandle, name string) *Bucket {
	return &Bucket{handle: handle, name: name}
}

// Upload writes data at path and returns a tokenized download URL.
func (b *Bucket) Upload(ctx context.Context, path string, data []byte, mimeType string) (string, error) {
	token := uuid.NewString()
	w := b.handle.Object(path).NewWriter(ctx)
	w.ContentType = mimeType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write object", goerr.V("path", path))
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize object", goerr.V("path", path))
	}
	return DownloadURL(b.name, path, token), nil
}

// DownloadURL is the Firebase Storage URL serving path with token.
func DownloadURL(bucket, path, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(path), url.QueryEscape(token))
}

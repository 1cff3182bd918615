// Package blob stores uploaded images and hands back a URL a peer can fetch.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// ErrNotImage is returned when uploaded bytes are not a recognised image.
var ErrNotImage = errors.New("not an image")

// Store is a blob store.
type Store interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (url string, err error)
}

// NewKey is the object key for an image uploaded by uploaderID.
func NewKey(uploaderID, ext string) string {
	return fmt.Sprintf("chat_images/%s/%s.%s", uploaderID, uuid.NewString(), ext)
}

// Sniff identifies an image from its leading bytes.
func Sniff(head []byte) (ext, mime string, err error) {
	if !filetype.IsImage(head) {
		return "", "", ErrNotImage
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return kind.Extension, kind.MIME.Value, nil
}

// Package storage persists generated media and returns a URL it can be
// retrieved from.
package storage

import (
	"context"
	"errors"
	"fmt"

	"ultrapay-backend/internal/models"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// Object is an artifact ready to be persisted under its transaction id.
type Object struct {
	Data          []byte
	MimeType      string
	MediaType     models.MediaType
	TransactionID string
}

// Backend stores an object and returns its retrieval URL. Failures wrap
// ErrStorageUnavailable.
type Backend interface {
	Store(ctx context.Context, obj Object) (string, error)
	Name() string
}

// ObjectKey returns generated/{transactionId}.{ext}.
func ObjectKey(obj Object) string {
	return fmt.Sprintf("generated/%s.%s", obj.TransactionID, obj.MediaType.Extension())
}

func validate(obj Object) error {
	if obj.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrStorageUnavailable)
	}
	if len(obj.Data) == 0 {
		return fmt.Errorf("%w: empty object", ErrStorageUnavailable)
	}
	if obj.MimeType == "" {
		return fmt.Errorf("%w: missing mime type", ErrStorageUnavailable)
	}
	return nil
}

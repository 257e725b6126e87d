package storage

import (
	"context"
	"encoding/base64"
)

// InlineBackend encodes the object into a data URL. Used when no object
// store is configured; nothing is written anywhere.
type InlineBackend struct{}

func NewInlineBackend() *InlineBackend {
	return &InlineBackend{}
}

func (InlineBackend) Name() string {
	return "inline"
}

func (InlineBackend) Store(_ context.Context, obj Object) (string, error) {
	if err := validate(obj); err != nil {
		return "", err
	}
	return "data:" + obj.MimeType + ";base64," + base64.StdEncoding.EncodeToString(obj.Data), nil
}

var (
	_ Backend = (*SupabaseBackend)(nil)
	_ Backend = (*InlineBackend)(nil)
)

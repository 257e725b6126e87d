package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	storage "github.com/supabase-community/storage-go"
)

type uploadFunc func(bucket, path string, data io.Reader, opts storage.FileOptions) error

// SupabaseBackend writes objects to a Supabase storage bucket and returns
// their public URL. The bucket must be public.
type SupabaseBackend struct {
	upload  uploadFunc
	bucket  string
	baseURL string
}

func NewSupabaseBackend(supabaseURL, serviceKey, bucket string) (*SupabaseBackend, error) {
	if supabaseURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return newSupabaseBackend(func(bucket, path string, data io.Reader, opts storage.FileOptions) error {
		_, err := client.UploadFile(bucket, path, data, opts)
		return err
	}, baseURL, bucket), nil
}

func newSupabaseBackend(upload uploadFunc, baseURL, bucket string) *SupabaseBackend {
	return &SupabaseBackend{
		upload:  upload,
		bucket:  bucket,
		baseURL: baseURL,
	}
}

func (s *SupabaseBackend) Name() string {
	return "supabase"
}

func (s *SupabaseBackend) Store(ctx context.Context, obj Object) (string, error) {
	if err := validate(obj); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	key := ObjectKey(obj)
	contentType := obj.MimeType
	upsert := true
	if err := s.upload(s.bucket, key, bytes.NewReader(obj.Data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("%w: failed to upload %s: %v", ErrStorageUnavailable, key, err)
	}

	return s.PublicURL(key), nil
}

func (s *SupabaseBackend) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}

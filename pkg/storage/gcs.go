package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// GCSSource reads gs://bucket/object URLs with application default credentials.
type GCSSource struct {
	client *gcs.Client
}

func NewGCSSource(ctx context.Context) (*GCSSource, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}
	return &GCSSource{client: client}, nil
}

func (s *GCSSource) Supports(u *url.URL) bool {
	return u.Scheme == "gs"
}

func (s *GCSSource) Open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSURL(u)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if err == gcs.ErrObjectNotExist {
			return nil, fmt.Errorf("object gs://%s/%s does not exist", bucket, object)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return r, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}

// ParseGCSURL splits gs://bucket/path/to/object.
func ParseGCSURL(u *url.URL) (string, string, error) {
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("invalid GCS URL: %s", u.String())
	}
	object := strings.TrimPrefix(u.Path, "/")
	if object == "" {
		return "", "", fmt.Errorf("invalid GCS URL, no object path: %s", u.String())
	}
	return u.Host, object, nil
}

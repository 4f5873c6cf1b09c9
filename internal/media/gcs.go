package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

type gcsObjectReader interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error)
}

type gcsClientReader struct {
	client *storage.Client
}

func (g gcsClientReader) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, string, error) {
	reader, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", err
	}
	return reader, reader.Attrs.ContentType, nil
}

// GCSResolver reads objects from a Cloud Storage bucket.
type GCSResolver struct {
	bucket string
	reader gcsObjectReader
}

// NewGCSResolver wraps an existing storage client.
func NewGCSResolver(client *storage.Client, bucket string) (*GCSResolver, error) {
	bucket = strings.TrimSpace(bucket)
	if client == nil || bucket == "" {
		return nil, errors.New("media/gcs: client and bucket are required")
	}
	return &GCSResolver{bucket: bucket, reader: gcsClientReader{client: client}}, nil
}

func (r *GCSResolver) Name() string { return "gcs:" + r.bucket }

func (r *GCSResolver) Resolve(ctx context.Context, p string) (Object, error) {
	rc, contentType, err := r.reader.NewReader(ctx, r.bucket, p)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("media/gcs: open %s/%s: %w", r.bucket, p, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, maxObjectSize))
	if err != nil {
		return Object{}, fmt.Errorf("media/gcs: read %s/%s: %w", r.bucket, p, err)
	}
	return Object{Body: body, ContentType: pickContentType(contentType, p), Source: r.Name()}, nil
}

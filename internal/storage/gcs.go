package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/htverse/apiserver/config"
)

// GCSClient stores objects in one Google Cloud Storage bucket.
type GCSClient struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

// NewGCSClient constructs a GCS client from config.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		projectID: cfg.ProjectID,
	}, nil
}

// EnsureBucket creates the bucket with uniform access when it is missing.
// Creation needs a project id.
func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if strings.TrimSpace(g.projectID) == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.bucket.Create(ctx, g.projectID, &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
	})
}

// Put uploads r. Objects of known size go up in a single request.
func (g *GCSClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writer := g.bucket.Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = cacheControl
	if size > 0 {
		writer.ChunkSize = 0
	}
	if _, err := io.Copy(writer, r); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func (g *GCSClient) Get(ctx context.Context, key string) (*Object, error) {
	reader, err := g.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Object{ReadCloser: reader, Size: reader.Attrs.Size, ContentType: reader.Attrs.ContentType}, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (g *GCSClient) Delete(ctx context.Context, key string) error {
	err := g.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *GCSClient) Bucket() string {
	return g.name
}

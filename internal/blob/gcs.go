package blob

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/shubhamdixena/opportunity-pipeline/internal/pipeline"
)

// GCSStore writes snapshots to a Google Cloud Storage bucket.
// Authentication goes through Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCS creates the client and verifies the bucket is reachable, so a
// misconfigured deployment fails at startup instead of mid-run.
func NewGCS(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("closing gcs client after bucket check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("gcs bucket %q attributes: %w", bucket, err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}, nil
}

// PutObject uploads data and returns the gs:// URI of the written object.
func (g *GCSStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	name := g.objectName(path)
	wc := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		if closeErr := wc.Close(); closeErr != nil {
			g.logger.Warn("closing gcs writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write gcs object %s: %w", name, err)
	}
	// Close finalizes the upload and flushes buffered data.
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("close gcs writer for %s: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, name), nil
}

func (g *GCSStore) objectName(path string) string {
	path = strings.TrimPrefix(path, "/")
	if g.prefix == "" {
		return path
	}
	return g.prefix + "/" + path
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

var _ pipeline.BlobStore = (*GCSStore)(nil)

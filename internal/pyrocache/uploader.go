package pyrocache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 10 * time.Second

type SnapshotUploader interface {
	Upload(ctx context.Context, data []byte) error
}

// Copies snapshots to a Cloud Storage object
type GCSUploader struct {
	client *storage.Client
	bucket string
	object string
}

// Credentials are resolved the default way (GOOGLE_APPLICATION_CREDENTIALS, metadata server).
func NewGCSUploader(ctx context.Context, bucket, object string) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket, object: object}, nil
}

func (uploader *GCSUploader) Upload(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	writer := uploader.client.Bucket(uploader.bucket).Object(uploader.object).NewWriter(ctx)
	writer.ContentType = "application/octet-stream"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		writer.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	return nil
}

func (uploader *GCSUploader) Close() error {
	return uploader.client.Close()
}

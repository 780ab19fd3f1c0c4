package sink

import (
	"context"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/pitrozx/rscap/internal/logging"
)

// GCS implements ObjectStore on Google Cloud Storage.
type GCS struct {
	client *storage.Client
	logger *slog.Logger
}

// NewGCS creates a GCS-backed object store using ambient credentials.
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, &SinkError{Op: "create", Err: err}
	}
	return &GCS{
		client: client,
		logger: logging.GetLogger("sink"),
	}, nil
}

// Upload opens a streaming writer for bucket/key. The bucket is verified
// up front so a bad destination fails before any transcoding starts. The
// writer's lifetime is detached from ctx: a canceled recording still
// drains and commits, and failed attempts abort through Discard instead.
func (g *GCS) Upload(ctx context.Context, bucket, key, contentType string) (*Upload, error) {
	b := g.client.Bucket(bucket)
	if _, err := b.Attrs(ctx); err != nil {
		return nil, &SinkError{Op: "create", Bucket: bucket, Key: key, Err: err}
	}

	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := b.Object(key).NewWriter(wctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=3600"

	g.logger.Debug("Upload started", "bucket", bucket, "key", key, "content_type", contentType)
	return newUpload(bucket, key, &gcsWriter{w: w, cancel: cancel}), nil
}

// gcsWriter commits on Close and aborts the resumable upload by canceling
// the writer's context.
type gcsWriter struct {
	w      *storage.Writer
	cancel context.CancelFunc
}

func (g *gcsWriter) Write(p []byte) (int, error) {
	return g.w.Write(p)
}

func (g *gcsWriter) Close() error {
	err := g.w.Close()
	g.cancel()
	return err
}

func (g *gcsWriter) Abort() error {
	g.cancel()
	_ = g.w.Close()
	return nil
}

// List returns the objects under prefix in bucket.
func (g *GCS) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	query := &storage.Query{Prefix: prefix}
	it := g.client.Bucket(bucket).Objects(ctx, query)

	var objects []ObjectInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &SinkError{Op: "list", Bucket: bucket, Err: err}
		}
		objects = append(objects, ObjectInfo{
			Key:         attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
		})
	}
	return objects, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

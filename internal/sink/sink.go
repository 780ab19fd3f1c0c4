// Package sink streams recording output to object storage. An Upload is a
// single in-flight object: bytes written to it go straight to the
// destination, and the object becomes visible only after Finalize.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrFinalized is returned when an upload is written to or finalized after
// it has already been finalized.
var ErrFinalized = errors.New("upload already finalized")

// SinkError describes a failed object-storage operation.
type SinkError struct {
	Op     string // "create", "write", "finalize", "list"
	Bucket string
	Key    string
	Err    error
}

func (e *SinkError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("sink %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// ObjectInfo describes a committed object.
type ObjectInfo struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated,omitempty"`
}

// ObjectStore creates streaming uploads and lists committed objects.
type ObjectStore interface {
	// Upload opens a streaming upload for bucket/key. The returned Upload
	// must be finalized (or abandoned) by the caller.
	Upload(ctx context.Context, bucket, key, contentType string) (*Upload, error)
	// List returns the objects under prefix in bucket.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Close() error
}

// committer is the store-side half of an upload. Close commits the
// object; Abort drops it without leaving anything behind.
type committer interface {
	Write(p []byte) (n int, err error)
	Close() error
	Abort() error
}

// Upload is a single streaming object upload. It is driven by one writer
// goroutine; the settled flag still guards misuse from teardown paths.
type Upload struct {
	bucket string
	key    string

	mu      sync.Mutex
	w       committer
	settled bool
	bytes   int64
}

func newUpload(bucket, key string, w committer) *Upload {
	return &Upload{bucket: bucket, key: key, w: w}
}

// Write streams p to the destination object. After Finalize or Discard
// it rejects all writes with a SinkError.
func (u *Upload) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.settled {
		return 0, &SinkError{Op: "write", Bucket: u.bucket, Key: u.key, Err: ErrFinalized}
	}
	n, err := u.w.Write(p)
	u.bytes += int64(n)
	if err != nil {
		return n, &SinkError{Op: "write", Bucket: u.bucket, Key: u.key, Err: err}
	}
	return n, nil
}

// Finalize commits the object. It commits at most once; further calls fail
// without touching the destination again.
func (u *Upload) Finalize() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.settled {
		return &SinkError{Op: "finalize", Bucket: u.bucket, Key: u.key, Err: ErrFinalized}
	}
	u.settled = true
	if err := u.w.Close(); err != nil {
		return &SinkError{Op: "finalize", Bucket: u.bucket, Key: u.key, Err: err}
	}
	return nil
}

// Discard abandons the upload so no destination object is created. It is
// the failure-path counterpart of Finalize; once the upload is settled it
// does nothing.
func (u *Upload) Discard() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.settled {
		return nil
	}
	u.settled = true
	if err := u.w.Abort(); err != nil {
		return &SinkError{Op: "discard", Bucket: u.bucket, Key: u.key, Err: err}
	}
	return nil
}

// Bytes reports how many bytes the upload has accepted.
func (u *Upload) Bytes() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bytes
}

// Bucket returns the destination bucket name.
func (u *Upload) Bucket() string { return u.bucket }

// Key returns the destination object key.
func (u *Upload) Key() string { return u.key }

// ContentTypeForKey maps an object key to its MIME type by extension.
func ContentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".mkv"):
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

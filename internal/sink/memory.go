package sink

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process ObjectStore for tests. Objects commit on
// Finalize; aborted uploads leave nothing behind. Write and finalize
// failures can be injected.
type Memory struct {
	mu          sync.Mutex
	objects     map[string][]byte
	aborted     map[string]bool
	writeErr    error
	finalizeErr error
}

// NewMemory creates an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string][]byte),
		aborted: make(map[string]bool),
	}
}

// FailWrites makes every subsequent upload write return err.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailFinalize makes every subsequent finalize return err.
func (m *Memory) FailFinalize(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalizeErr = err
}

// Object returns a committed object's bytes.
func (m *Memory) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, ok
}

// AbortedUpload reports whether an upload to bucket/key was aborted.
func (m *Memory) AbortedUpload(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted[bucket+"/"+key]
}

func (m *Memory) Upload(_ context.Context, bucket, key, _ string) (*Upload, error) {
	return newUpload(bucket, key, &memoryWriter{store: m, bucket: bucket, key: key}), nil
}

func (m *Memory) List(_ context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var objects []ObjectInfo
	for name, data := range m.objects {
		b, key, ok := strings.Cut(name, "/")
		if !ok || b != bucket || !strings.HasPrefix(key, prefix) {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:     key,
			Size:    int64(len(data)),
			Updated: time.Now(),
		})
	}
	return objects, nil
}

func (m *Memory) Close() error { return nil }

type memoryWriter struct {
	store  *Memory
	bucket string
	key    string
	buf    bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if w.store.writeErr != nil {
		return 0, w.store.writeErr
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	if w.store.finalizeErr != nil {
		return w.store.finalizeErr
	}
	w.store.objects[w.bucket+"/"+w.key] = w.buf.Bytes()
	return nil
}

func (w *memoryWriter) Abort() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.buf.Reset()
	w.store.aborted[w.bucket+"/"+w.key] = true
	return nil
}

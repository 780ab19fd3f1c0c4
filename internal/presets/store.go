// Package presets persists named recording requests in a TOML file so
// operators can start recurring captures without retyping parameters.
package presets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/pitrozx/rscap/internal/types"
)

// ErrNotFound is returned when a named preset does not exist.
var ErrNotFound = errors.New("preset not found")

// Preset is a stored recording request with bookkeeping metadata.
type Preset struct {
	Description string                 `toml:"description,omitempty" json:"description,omitempty"`
	Request     types.RecordingRequest `toml:"request" json:"request"`
	CreatedAt   time.Time              `toml:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `toml:"updated_at" json:"updated_at"`
}

// document is the on-disk file shape.
type document struct {
	Version int               `toml:"version"`
	Presets map[string]Preset `toml:"presets"`
}

// Store is a TOML-backed preset collection. Safe for concurrent use.
type Store struct {
	path string

	mu  sync.RWMutex
	doc document
}

// NewStore creates a store backed by path, "presets.toml" when empty.
func NewStore(path string) *Store {
	if path == "" {
		path = "presets.toml"
	}
	return &Store{
		path: path,
		doc: document{
			Version: 1,
			Presets: make(map[string]Preset),
		},
	}
}

// Load reads the preset file. A missing file leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading presets: %w", err)
	}

	if err := toml.Unmarshal(data, &s.doc); err != nil {
		return fmt.Errorf("parsing presets: %w", err)
	}
	if s.doc.Presets == nil {
		s.doc.Presets = make(map[string]Preset)
	}
	if s.doc.Version == 0 {
		s.doc.Version = 1
	}
	return nil
}

// save writes the file. Callers hold mu.
func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating presets directory: %w", err)
		}
	}

	data, err := toml.Marshal(s.doc)
	if err != nil {
		return fmt.Errorf("marshaling presets: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing presets: %w", err)
	}
	return nil
}

// Put stores a preset under name, normalizing and validating its request.
// An existing preset keeps its creation time.
func (s *Store) Put(name string, p Preset) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("preset name is required")
	}
	p.Request.ApplyDefaults()
	if err := p.Request.Validate(); err != nil {
		return fmt.Errorf("preset %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.doc.Presets[name]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.doc.Presets[name] = p
	return s.save()
}

// Remove deletes a preset by name.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Presets[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.doc.Presets, name)
	return s.save()
}

// Get retrieves a preset by name.
func (s *Store) Get(name string) (Preset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.doc.Presets[name]
	return p, ok
}

// Names returns all preset names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.doc.Presets))
	for name := range s.doc.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every preset keyed by name.
func (s *Store) All() map[string]Preset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Preset, len(s.doc.Presets))
	for name, p := range s.doc.Presets {
		out[name] = p
	}
	return out
}

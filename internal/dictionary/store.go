package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store is the persisted custom-word dictionary with a read-through cache.
//
// Reads are served from cache for the configured TTL to spare the hot path
// (every recognizer prompt build) redundant disk reads. Any write saves the
// document and invalidates the cache immediately. Safe for concurrent use.
type Store struct {
	path string
	ttl  time.Duration
	now  func() time.Time

	mu        sync.RWMutex
	cached    *Document
	fetchedAt time.Time
}

// NewStore creates a Store over the JSON document at path. A missing file
// reads as an empty dictionary until the first write creates it.
func NewStore(path string, ttl time.Duration) *Store {
	return &Store{path: path, ttl: ttl, now: time.Now}
}

// Load returns the dictionary document, from cache when fresh. The returned
// document is shared; callers must not mutate it.
func (s *Store) Load() (*Document, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		doc := s.cached
		s.mu.RUnlock()
		return doc, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another reader may have refreshed while we waited for the lock.
	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached, nil
	}

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cached = doc
	s.fetchedAt = s.now()
	return doc, nil
}

// Add appends entries to the document, saves it, and invalidates the cache.
func (s *Store) Add(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Entries = append(doc.Entries, entries...)
	if err := s.write(doc); err != nil {
		return err
	}
	s.cached = nil
	s.fetchedAt = time.Time{}
	return nil
}

// Invalidate drops the cache so the next Load re-reads disk. Called when an
// external writer (the settings UI) touches the document.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.fetchedAt = time.Time{}
}

// read must be called with at least a read lock held.
func (s *Store) read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dictionary: read %q: %w", s.path, err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("dictionary: parse %q: %w", s.path, err)
	}
	return doc, nil
}

// write must be called with the write lock held. The document is written to
// a temp file and renamed so readers never observe a torn write.
func (s *Store) write(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("dictionary: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dictionary: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".dictionary-*.json")
	if err != nil {
		return fmt.Errorf("dictionary: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("dictionary: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("dictionary: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("dictionary: rename: %w", err)
	}
	return nil
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore is a [Store] backed by a JSON document. Single-writer: all
// mutation happens under one mutex, and the document is rewritten atomically
// on every change.
type FileStore struct {
	path string

	mu      sync.Mutex
	records []Record
	loaded  bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore over the JSON document at path.
// A missing file reads as an empty history.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Upsert(ctx context.Context, original, corrected string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range s.records {
		r := &s.records[i]
		if r.Original == original && r.Corrected == corrected {
			r.OccurrenceCount++
			r.LastSeen = now
			if err := s.save(); err != nil {
				return nil, err
			}
			out := *r
			return &out, nil
		}
	}

	rec := Record{
		ID:              uuid.NewString(),
		Original:        original,
		Corrected:       corrected,
		OccurrenceCount: 1,
		FirstSeen:       now,
		LastSeen:        now,
	}
	s.records = append(s.records, rec)
	if err := s.save(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) MarkAdded(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].AddedToDictionary = true
			return s.save()
		}
	}
	return fmt.Errorf("history: record %q not found", id)
}

func (s *FileStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out, nil
}

// ensureLoaded must be called with s.mu held.
func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: read %q: %w", s.path, err)
	}

	var doc struct {
		Records []Record `json:"records"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("history: parse %q: %w", s.path, err)
	}
	s.records = doc.Records
	s.loaded = true
	return nil
}

// save must be called with s.mu held.
func (s *FileStore) save() error {
	doc := struct {
		Records []Record `json:"records"`
	}{Records: s.records}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("history: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("history: rename: %w", err)
	}
	return nil
}

package history

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileStoreUpsertCounts(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "history.json"))

	r1, err := s.Upsert(ctx, "他", "她")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r1.OccurrenceCount != 1 {
		t.Fatalf("count = %d, want 1", r1.OccurrenceCount)
	}

	r2, err := s.Upsert(ctx, "他", "她")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r2.OccurrenceCount != 2 {
		t.Fatalf("count = %d, want 2", r2.OccurrenceCount)
	}
	if r2.ID != r1.ID {
		t.Fatalf("id changed on repeat: %q != %q", r2.ID, r1.ID)
	}

	// A different pair is a fresh record.
	r3, err := s.Upsert(ctx, "他", "它")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if r3.OccurrenceCount != 1 || r3.ID == r1.ID {
		t.Fatalf("distinct pair record = %+v", r3)
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.json")

	s1 := NewFileStore(path)
	r, err := s1.Upsert(ctx, "foo", "bar")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s1.MarkAdded(ctx, r.ID); err != nil {
		t.Fatalf("mark added: %v", err)
	}

	s2 := NewFileStore(path)
	records, err := s2.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if !records[0].AddedToDictionary {
		t.Fatal("added_to_dictionary not persisted")
	}
}

func TestFileStoreMarkAddedUnknownID(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "history.json"))
	if err := s.MarkAdded(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

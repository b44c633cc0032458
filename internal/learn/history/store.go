// Package history persists correction records observed by the learning
// engine.
//
// Two implementations exist: [FileStore], a JSON document matching the other
// persisted state, and [PostgresStore] for installations that already run a
// database. Both are keyed by the (original, corrected) pair; repeats
// increment the occurrence count rather than creating new records.
package history

import (
	"context"
	"time"
)

// Record is one observed correction pair and its bookkeeping.
type Record struct {
	ID                string    `json:"id"`
	Original          string    `json:"original"`
	Corrected         string    `json:"corrected"`
	OccurrenceCount   int       `json:"occurrence_count"`
	FirstSeen         time.Time `json:"first_seen"`
	LastSeen          time.Time `json:"last_seen"`
	AddedToDictionary bool      `json:"added_to_dictionary"`
}

// Store is the correction-record persistence contract.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert records one observation of the pair: a new record starts at
	// count 1; an existing record increments its count and refreshes
	// LastSeen. The returned record reflects the stored state.
	Upsert(ctx context.Context, original, corrected string) (*Record, error)

	// MarkAdded flags the record as promoted to the dictionary.
	MarkAdded(ctx context.Context, id string) error

	// List returns all records, most recently seen first.
	List(ctx context.Context) ([]Record, error)
}

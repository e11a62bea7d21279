// Package store persists journal records as encrypted container files in a
// per-user directory, and keeps the account registry in a bbolt database.
package store

import (
	"errors"

	"github.com/sleepbook/sleepbook/internal/domain"
)

// Error variables for journal store operations
var (
	// ErrInvalidID is returned when an entry identifier is not a UUID
	ErrInvalidID = errors.New("invalid entry id")
	// ErrIndexUnreadable is returned when the summary index file exists but
	// cannot be decrypted or decoded, so rewriting it would destroy data
	ErrIndexUnreadable = errors.New("summary index exists but cannot be read")
	// ErrDataDirLocked is returned when another process holds the data directory
	ErrDataDirLocked = errors.New("data directory is locked by another process")
	// ErrAccountNotFound is returned when the specified account does not exist
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when registering a username that is taken
	ErrAccountExists = errors.New("account already exists")
	// ErrRegistryCorrupted is returned when the account registry is missing buckets
	ErrRegistryCorrupted = errors.New("account registry is corrupted")
)

// EntryStore persists one encrypted file per entry.
type EntryStore interface {
	// Save writes the entry under its id, replacing any previous file.
	Save(e *domain.Entry) error
	// Load reads the entry with the given id; false means absent.
	Load(id string) (*domain.Entry, bool)
	// Delete removes the entry file. Deleting a missing entry succeeds.
	Delete(id string) error
	// Exists reports whether a file for id is present, readable or not.
	Exists(id string) bool
	// IDs lists the ids of all id-keyed entry files.
	IDs() ([]string, error)

	// LoadLegacyByDate reads a date-named entry written before identifiers.
	LoadLegacyByDate(d domain.Date) (*domain.Entry, bool)
	// DeleteLegacy removes a date-named entry file.
	DeleteLegacy(d domain.Date) error
	// LegacyDates lists the dates of all date-named entry files.
	LegacyDates() ([]domain.Date, error)
}

// SummaryIndex persists the full collection of summary records in one file.
type SummaryIndex interface {
	// LoadAll returns every record in stored order; empty when absent.
	LoadAll() []domain.SummaryRecord
	// Upsert replaces the record with the same id or appends it.
	Upsert(rec domain.SummaryRecord) error
	// Remove drops the record with the given id.
	Remove(id string) error
	// AdoptLegacy drops id-less records for rec.Date and upserts rec.
	AdoptLegacy(rec domain.SummaryRecord) error
	// ReplaceAll rewrites the index with exactly the given records.
	ReplaceAll(records []domain.SummaryRecord) error
}

// MetricStore persists the user's metric definitions.
type MetricStore interface {
	Load() ([]domain.MetricDefinition, bool)
	Save(defs []domain.MetricDefinition) error
}

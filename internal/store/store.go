// Package store provides durable record persistence for tracker profiles, with
// SQLite and Redis implementations.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Record names one independently readable/writable piece of profile state.
type Record string

const (
	RecordResponses Record = "milestone_responses"
	RecordLanguage  Record = "language_preference"
	RecordEvidence  Record = "video_uploads"
	RecordChild     Record = "child_profile"
)

// ValidRecords are the record names a store accepts.
var ValidRecords = map[Record]bool{
	RecordResponses: true,
	RecordLanguage:  true,
	RecordEvidence:  true,
	RecordChild:     true,
}

// ErrNotFound is returned by Load when a record has never been written.
var ErrNotFound = errors.New("record not found")

var profileRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateProfile checks that a profile name is usable as a storage key.
func ValidateProfile(profile string) error {
	if !profileRegex.MatchString(profile) {
		return fmt.Errorf("invalid profile %q (letters, digits, '-' and '_' only, max 64)", profile)
	}
	return nil
}

func validate(profile string, rec Record) error {
	if err := ValidateProfile(profile); err != nil {
		return err
	}
	if !ValidRecords[rec] {
		return fmt.Errorf("unknown record %q", rec)
	}
	return nil
}

// Entry is one stored record, as listed or exported.
type Entry struct {
	Profile   string          `json:"profile"`
	Record    Record          `json:"record"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Persistence is the load/save contract the response store writes through.
// Each Save replaces the whole record atomically: after a failed Save the
// previous value is still readable, never a partial one.
type Persistence interface {
	// Load returns the record payload, or ErrNotFound.
	Load(ctx context.Context, profile string, rec Record) ([]byte, error)

	// Save durably replaces the record payload before returning.
	Save(ctx context.Context, profile string, rec Record, payload []byte) error

	// Delete removes the named records. Missing records are not an error.
	Delete(ctx context.Context, profile string, recs ...Record) error
}

// Store is a Persistence that can also enumerate its contents.
type Store interface {
	Persistence

	// Entries lists stored records for a profile, or for all profiles when empty.
	Entries(ctx context.Context, profile string) ([]Entry, error)

	// Close closes the store.
	Close() error
}

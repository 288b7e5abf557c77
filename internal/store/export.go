package store

import (
	"context"
	"fmt"

	"github.com/rcliao/milestone-tracker/internal/model"
)

// Export returns every record of a profile, or of all profiles when empty.
func Export(ctx context.Context, s Store, profile string) ([]Entry, error) {
	if profile != "" {
		if err := ValidateProfile(profile); err != nil {
			return nil, err
		}
	}
	return s.Entries(ctx, profile)
}

// Import writes exported entries back. When profile is non-empty every entry is
// written into that profile instead of its original one. Every entry is
// checked before anything is written, so a malformed backup leaves the store
// untouched.
func Import(ctx context.Context, p Persistence, entries []Entry, profile string) (int, error) {
	for _, e := range entries {
		target := e.Profile
		if profile != "" {
			target = profile
		}
		if err := validate(target, e.Record); err != nil {
			return 0, model.NewError(model.KindInvalidInput, err, "entry %s/%s", e.Profile, e.Record)
		}
		if len(e.Payload) == 0 {
			return 0, model.NewError(model.KindInvalidInput, nil, "entry %s/%s: empty payload", e.Profile, e.Record)
		}
		if err := ValidatePayload(e.Record, e.Payload); err != nil {
			return 0, fmt.Errorf("entry %s/%s: %w", e.Profile, e.Record, err)
		}
	}

	imported := 0
	for _, e := range entries {
		target := e.Profile
		if profile != "" {
			target = profile
		}
		if err := p.Save(ctx, target, e.Record, e.Payload); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

package store

import (
	"context"
	"os"
	"sort"
)

// Stats holds database statistics.
type Stats struct {
	DBPath       string         `json:"db_path,omitempty"`
	DBSizeBytes  int64          `json:"db_size_bytes,omitempty"`
	TotalRecords int            `json:"total_records"`
	Profiles     []ProfileStats `json:"profiles"`
}

// ProfileStats holds per-profile record counts.
type ProfileStats struct {
	Profile string   `json:"profile"`
	Records []Record `json:"records"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	entries, err := s.Entries(ctx, "")
	if err != nil {
		return st, err
	}
	st.TotalRecords = len(entries)
	st.Profiles = Summarize(entries)
	return st, nil
}

// Summarize groups entries by profile, sorted by profile name.
func Summarize(entries []Entry) []ProfileStats {
	byProfile := map[string][]Record{}
	for _, e := range entries {
		byProfile[e.Profile] = append(byProfile[e.Profile], e.Record)
	}

	out := make([]ProfileStats, 0, len(byProfile))
	for p, recs := range byProfile {
		sort.Slice(recs, func(i, j int) bool { return recs[i] < recs[j] })
		out = append(out, ProfileStats{Profile: p, Records: recs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Profile < out[j].Profile })
	return out
}

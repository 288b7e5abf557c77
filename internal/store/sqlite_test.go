package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Save(ctx, "default", RecordResponses, []byte(`{"M_12M_001":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "default", RecordResponses)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"M_12M_001":true}` {
		t.Errorf("unexpected payload %q", got)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background(), "default", RecordLanguage)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Save(ctx, "default", RecordLanguage, []byte(`"en"`))
	s.Save(ctx, "default", RecordLanguage, []byte(`"hi"`))

	got, _ := s.Load(ctx, "default", RecordLanguage)
	if string(got) != `"hi"` {
		t.Errorf("expected latest payload, got %q", got)
	}

	entries, _ := s.Entries(ctx, "default")
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after overwrite, got %d", len(entries))
	}
}

func TestRecordsAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Save(ctx, "default", RecordResponses, []byte(`{"a":false}`))
	s.Save(ctx, "default", RecordEvidence, []byte(`{}`))
	s.Save(ctx, "other", RecordResponses, []byte(`{"b":true}`))

	if err := s.Delete(ctx, "default", RecordEvidence); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.Load(ctx, "default", RecordEvidence); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected evidence deleted, got %v", err)
	}
	got, _ := s.Load(ctx, "default", RecordResponses)
	if string(got) != `{"a":false}` {
		t.Errorf("responses changed: %q", got)
	}
	other, _ := s.Load(ctx, "other", RecordResponses)
	if string(other) != `{"b":true}` {
		t.Errorf("other profile changed: %q", other)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Save(ctx, "default", RecordResponses, []byte(`{"x":false}`))
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Load(ctx, "default", RecordResponses)
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if string(got) != `{"x":false}` {
		t.Errorf("unexpected payload %q", got)
	}
}

func TestRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name    string
		profile string
		rec     Record
	}{
		{"empty profile", "", RecordResponses},
		{"profile with colon", "a:b", RecordResponses},
		{"unknown record", "default", Record("passwords")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Save(ctx, tt.profile, tt.rec, []byte(`{}`)); err == nil {
				t.Error("expected save error")
			}
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Save(ctx, "b", RecordResponses, []byte(`{}`))
	s.Save(ctx, "a", RecordLanguage, []byte(`"en"`))
	s.Save(ctx, "a", RecordResponses, []byte(`{}`))

	st, err := s.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 3 {
		t.Errorf("expected 3 records, got %d", st.TotalRecords)
	}
	if len(st.Profiles) != 2 || st.Profiles[0].Profile != "a" || len(st.Profiles[0].Records) != 2 {
		t.Errorf("unexpected profile stats: %+v", st.Profiles)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	dst := newTestStore(t)

	src.Save(ctx, "default", RecordResponses, []byte(`{"a":true}`))
	src.Save(ctx, "default", RecordLanguage, []byte(`"hi"`))

	entries, err := Export(ctx, src, "default")
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	n, err := Import(ctx, dst, entries, "restored")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	got, _ := dst.Load(ctx, "restored", RecordLanguage)
	if string(got) != `"hi"` {
		t.Errorf("unexpected imported payload %q", got)
	}
}

func TestImportRejectsMalformedPayloads(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		rec     Record
		payload string
	}{
		{"string answer", RecordResponses, `{"M_12M_001":"yes"}`},
		{"answers not an object", RecordResponses, `[true]`},
		{"answers null", RecordResponses, `null`},
		{"unknown language", RecordLanguage, `"fr"`},
		{"language not a string", RecordLanguage, `1`},
		{"negative age", RecordChild, `{"age_months":-1,"child_name":"A"}`},
		{"missing age", RecordChild, `{"child_name":"A"}`},
		{"unknown child field", RecordChild, `{"age_months":3,"dob":"2024-01-01"}`},
		{"empty evidence reference", RecordEvidence, `{"M_12M_001":{"reference":"","captured_at":"2025-01-01T00:00:00Z"}}`},
		{"null evidence", RecordEvidence, `{"M_12M_001":null}`},
		{"trailing data", RecordResponses, `{} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			entries := []Entry{
				{Profile: "default", Record: RecordLanguage, Payload: []byte(`"hi"`)},
				{Profile: "default", Record: tt.rec, Payload: []byte(tt.payload)},
			}
			n, err := Import(ctx, s, entries, "")
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if n != 0 {
				t.Errorf("expected nothing imported, got %d", n)
			}
			if _, err := s.Load(ctx, "default", RecordLanguage); !errors.Is(err, ErrNotFound) {
				t.Errorf("valid entry written despite failed import: %v", err)
			}
		})
	}
}

func TestImportAcceptsNullAnswers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	entries := []Entry{
		{Profile: "default", Record: RecordResponses, Payload: []byte(`{"L_24M_003":null,"M_12M_001":true}`)},
		{Profile: "default", Record: RecordChild, Payload: []byte(`{"age_months":24,"child_name":"Meera"}`)},
		{Profile: "default", Record: RecordEvidence, Payload: []byte(`{"M_12M_001":{"reference":"s3://b/k.mp4","captured_at":"2025-01-01T00:00:00Z"}}`)},
	}
	n, err := Import(ctx, s, entries, "")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 imported, got %d", n)
	}
}

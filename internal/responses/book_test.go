package responses

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/progress"
	"github.com/rcliao/milestone-tracker/internal/store"
)

// flakyStore wraps a Persistence and fails Save/Delete on demand.
type flakyStore struct {
	store.Persistence
	failWrites bool
}

func (f *flakyStore) Save(ctx context.Context, profile string, rec store.Record, payload []byte) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Persistence.Save(ctx, profile, rec, payload)
}

func (f *flakyStore) Delete(ctx context.Context, profile string, recs ...store.Record) error {
	if f.failWrites {
		return errors.New("disk full")
	}
	return f.Persistence.Delete(ctx, profile, recs...)
}

type recordingObserver struct {
	ops  []string
	errs int
}

func (o *recordingObserver) ResponseWrite(op string, err error) {
	o.ops = append(o.ops, op)
	if err != nil {
		o.errs++
	}
}

func openSQLite(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newBook(t *testing.T) (*Book, *flakyStore) {
	t.Helper()
	backend := &flakyStore{Persistence: openSQLite(t, filepath.Join(t.TempDir(), "book.db"))}
	b, err := Open(context.Background(), catalog.Default(), backend, "default")
	require.NoError(t, err)
	return b, backend
}

func TestGetDefaultsToUnanswered(t *testing.T) {
	b, _ := newBook(t)
	assert.Equal(t, model.Unanswered, b.Get("M_12M_001"))
	assert.Equal(t, model.Unanswered, b.Get("not-a-milestone"))
}

func TestSetThenGetSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "restart.db")
	cat := catalog.Default()

	s1, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	b, err := Open(ctx, cat, s1, "default")
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "M_12M_001", false))
	require.NoError(t, b.Set(ctx, "L_12M_001", true))
	assert.Equal(t, model.No, b.Get("M_12M_001"))
	require.NoError(t, s1.Close())

	s2 := openSQLite(t, path)
	reloaded, err := Open(ctx, cat, s2, "default")
	require.NoError(t, err)
	assert.Equal(t, model.No, reloaded.Get("M_12M_001"))
	assert.Equal(t, model.Yes, reloaded.Get("L_12M_001"))
	assert.Equal(t, model.Unanswered, reloaded.Get("S_12M_001"))
}

func TestSetUnknownIDLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	require.NoError(t, b.Set(ctx, "M_12M_001", true))
	before := b.Snapshot()

	err := b.Set(ctx, "X_99M_001", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidMilestoneID)
	assert.Equal(t, model.KindInvalidMilestoneID, model.KindOf(err))

	after := b.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Answers(), after.Answers())
}

func TestSetWriteFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	b, backend := newBook(t)
	require.NoError(t, b.Set(ctx, "M_12M_001", true))

	backend.failWrites = true
	err := b.Set(ctx, "M_12M_001", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrPersistenceWrite)
	assert.False(t, model.IsRetryable(err))

	// Memory still matches what is on disk.
	assert.Equal(t, model.Yes, b.Get("M_12M_001"))
}

func TestAttachEvidenceIndependentOfAnswer(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, b.AttachEvidence(ctx, "S_12M_002", model.EvidenceRef{Reference: "s3://videos/abc.mp4", CapturedAt: at}))
	ref, ok := b.Evidence("S_12M_002")
	require.True(t, ok)
	assert.Equal(t, "s3://videos/abc.mp4", ref.Reference)
	assert.Equal(t, model.Unanswered, b.Get("S_12M_002"))

	err := b.AttachEvidence(ctx, "nope", model.EvidenceRef{Reference: "x"})
	assert.ErrorIs(t, err, model.ErrInvalidMilestoneID)

	err = b.AttachEvidence(ctx, "S_12M_002", model.EvidenceRef{})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	b, backend := newBook(t)
	require.NoError(t, b.Set(ctx, "M_12M_001", true))
	require.NoError(t, b.AttachEvidence(ctx, "M_12M_001", model.EvidenceRef{Reference: "r"}))

	require.NoError(t, b.ClearAll(ctx))
	assert.Equal(t, model.Unanswered, b.Get("M_12M_001"))
	_, ok := b.Evidence("M_12M_001")
	assert.False(t, ok)

	_, err := backend.Load(ctx, "default", store.RecordResponses)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpenDropsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	backend := openSQLite(t, filepath.Join(t.TempDir(), "drop.db"))
	require.NoError(t, backend.Save(ctx, "default", store.RecordResponses, []byte(`{"M_12M_001":true,"GONE_1":false}`)))

	b, err := Open(ctx, catalog.Default(), backend, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Snapshot().Len())
	assert.Equal(t, model.Yes, b.Get("M_12M_001"))
}

func TestOpenKeepsNullAnswersUnanswered(t *testing.T) {
	ctx := context.Background()
	backend := openSQLite(t, filepath.Join(t.TempDir(), "null.db"))
	require.NoError(t, backend.Save(ctx, "default", store.RecordResponses, []byte(`{"L_24M_003":null,"L_24M_004":false}`)))
	require.NoError(t, backend.Save(ctx, "default", store.RecordEvidence, []byte(`{"M_12M_001":{"reference":"","captured_at":"2025-01-01T00:00:00Z"}}`)))

	b, err := Open(ctx, catalog.Default(), backend, "default")
	require.NoError(t, err)
	assert.Equal(t, model.Unanswered, b.Get("L_24M_003"))
	assert.Equal(t, model.No, b.Get("L_24M_004"))
	assert.Empty(t, b.AllEvidence())

	sum := progress.Calculate(b.Catalog(), b.Snapshot(), 30)
	assert.Equal(t, []string{"L_24M_004"}, sum.RedFlagViolations)
}

func TestSnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	require.NoError(t, b.Set(ctx, "M_12M_001", true))

	snap := b.Snapshot()
	require.NoError(t, b.Set(ctx, "M_12M_001", false))

	assert.Equal(t, model.Yes, snap.Get("M_12M_001"))
	assert.Equal(t, model.No, b.Get("M_12M_001"))
	assert.Greater(t, b.Version(), snap.Version)
}

func TestObserverSeesWrites(t *testing.T) {
	ctx := context.Background()
	backend := &flakyStore{Persistence: openSQLite(t, filepath.Join(t.TempDir(), "obs.db"))}
	obs := &recordingObserver{}
	b, err := Open(ctx, catalog.Default(), backend, "default", WithObserver(obs))
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, "M_12M_001", true))
	backend.failWrites = true
	_ = b.Set(ctx, "M_12M_001", false)

	assert.Equal(t, []string{"set", "set"}, obs.ops)
	assert.Equal(t, 1, obs.errs)
}

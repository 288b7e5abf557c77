// Package responses is the caregiver answer store: a write-through service over
// a store.Persistence, validated against the milestone catalog.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rcliao/milestone-tracker/internal/catalog"
	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/store"
)

// Observer is notified after each durable mutation attempt.
type Observer interface {
	ResponseWrite(op string, err error)
}

// Snapshot is an immutable copy of the answers at one version.
type Snapshot struct {
	Version uint64
	answers map[string]bool
}

// Get returns the answer recorded in the snapshot.
func (s Snapshot) Get(id string) model.Answer {
	v, ok := s.answers[id]
	if !ok {
		return model.Unanswered
	}
	return model.AnswerOf(v)
}

// AnswersVersion reports the book version the snapshot was taken at.
func (s Snapshot) AnswersVersion() uint64 { return s.Version }

// Len returns the number of answered milestones.
func (s Snapshot) Len() int { return len(s.answers) }

// Answers returns a copy of the answered milestones.
func (s Snapshot) Answers() map[string]bool {
	out := make(map[string]bool, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Book holds the answers and evidence references of one profile.
type Book struct {
	catalog  *catalog.Catalog
	backend  store.Persistence
	profile  string
	logger   *zap.Logger
	observer Observer

	mu       sync.RWMutex
	answers  map[string]bool
	evidence map[string]model.EvidenceRef
	version  uint64
}

type Option func(*Book)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

func WithObserver(o Observer) Option {
	return func(b *Book) {
		b.observer = o
	}
}

// Open loads the profile's answers and evidence. Entries for ids the catalog
// does not define are dropped.
func Open(ctx context.Context, cat *catalog.Catalog, backend store.Persistence, profile string, opts ...Option) (*Book, error) {
	if cat == nil || backend == nil {
		return nil, errors.New("catalog and backend are required")
	}
	if err := store.ValidateProfile(profile); err != nil {
		return nil, model.NewError(model.KindInvalidInput, err, "open responses")
	}

	b := &Book{
		catalog:  cat,
		backend:  backend,
		profile:  profile,
		logger:   zap.NewNop(),
		answers:  map[string]bool{},
		evidence: map[string]model.EvidenceRef{},
	}
	for _, opt := range opts {
		opt(b)
	}

	// A null entry stays unanswered.
	var stored map[string]*bool
	if err := b.loadRecord(ctx, store.RecordResponses, &stored); err != nil {
		return nil, err
	}
	if err := b.loadRecord(ctx, store.RecordEvidence, &b.evidence); err != nil {
		return nil, err
	}

	for id, v := range stored {
		switch {
		case !cat.Has(id):
			b.logger.Warn("dropping response for unknown milestone", zap.String("milestone_id", id))
		case v != nil:
			b.answers[id] = *v
		}
	}
	if b.evidence == nil {
		b.evidence = map[string]model.EvidenceRef{}
	}
	for id, ref := range b.evidence {
		if !cat.Has(id) || ref.Reference == "" {
			b.logger.Warn("dropping evidence", zap.String("milestone_id", id))
			delete(b.evidence, id)
		}
	}

	b.version = 1
	return b, nil
}

func (b *Book) loadRecord(ctx context.Context, rec store.Record, dst any) error {
	data, err := b.backend.Load(ctx, b.profile, rec)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", rec, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", rec, err)
	}
	return nil
}

// Profile returns the profile this book belongs to.
func (b *Book) Profile() string { return b.profile }

// Catalog returns the catalog answers are validated against.
func (b *Book) Catalog() *catalog.Catalog { return b.catalog }

// Get returns the answer for id, Unanswered when none was given.
func (b *Book) Get(id string) model.Answer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.answers[id]
	if !ok {
		return model.Unanswered
	}
	return model.AnswerOf(v)
}

// Set records a caregiver answer. It returns only after the answer is durably
// written; on failure the in-memory state is unchanged.
func (b *Book) Set(ctx context.Context, id string, value bool) error {
	if !b.catalog.Has(id) {
		return model.NewError(model.KindInvalidMilestoneID, nil, "%s", id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[string]bool, len(b.answers)+1)
	for k, v := range b.answers {
		next[k] = v
	}
	next[id] = value

	if err := b.write(ctx, "set", store.RecordResponses, next); err != nil {
		return err
	}
	b.answers = next
	b.version++
	b.logger.Debug("response recorded", zap.String("milestone_id", id), zap.Bool("value", value))
	return nil
}

// AttachEvidence records a media reference for id, whether or not it has been answered.
func (b *Book) AttachEvidence(ctx context.Context, id string, ref model.EvidenceRef) error {
	if !b.catalog.Has(id) {
		return model.NewError(model.KindInvalidMilestoneID, nil, "%s", id)
	}
	if ref.Reference == "" {
		return model.NewError(model.KindInvalidInput, nil, "empty evidence reference")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[string]model.EvidenceRef, len(b.evidence)+1)
	for k, v := range b.evidence {
		next[k] = v
	}
	next[id] = ref

	if err := b.write(ctx, "attach_evidence", store.RecordEvidence, next); err != nil {
		return err
	}
	b.evidence = next
	b.logger.Debug("evidence attached", zap.String("milestone_id", id))
	return nil
}

// Evidence returns the media reference attached to id.
func (b *Book) Evidence(id string) (model.EvidenceRef, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ref, ok := b.evidence[id]
	return ref, ok
}

// AllEvidence returns a copy of every attached reference.
func (b *Book) AllEvidence() map[string]model.EvidenceRef {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]model.EvidenceRef, len(b.evidence))
	for k, v := range b.evidence {
		out[k] = v
	}
	return out
}

// ClearAll irreversibly removes every answer and evidence reference of the profile.
func (b *Book) ClearAll(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.backend.Delete(ctx, b.profile, store.RecordResponses, store.RecordEvidence)
	if b.observer != nil {
		b.observer.ResponseWrite("clear_all", err)
	}
	if err != nil {
		return model.NewError(model.KindPersistenceWrite, err, "clear all")
	}
	b.answers = map[string]bool{}
	b.evidence = map[string]model.EvidenceRef{}
	b.version++
	b.logger.Info("all responses cleared", zap.String("profile", b.profile))
	return nil
}

// Snapshot copies the current answers for use outside the lock.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	answers := make(map[string]bool, len(b.answers))
	for k, v := range b.answers {
		answers[k] = v
	}
	return Snapshot{Version: b.version, answers: answers}
}

// Version increases on every successful mutation.
func (b *Book) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

func (b *Book) write(ctx context.Context, op string, rec store.Record, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return model.NewError(model.KindInternal, err, "encode %s", rec)
	}
	err = b.backend.Save(ctx, b.profile, rec, data)
	if b.observer != nil {
		b.observer.ResponseWrite(op, err)
	}
	if err != nil {
		b.logger.Error("persist failed", zap.String("record", string(rec)), zap.Error(err))
		return model.NewError(model.KindPersistenceWrite, err, "%s", op)
	}
	return nil
}

// Package reconcile submits completed milestones to the remote evaluation
// service and publishes the mapped result.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/remote"
	"github.com/rcliao/milestone-tracker/internal/responses"
)

// Evaluator is the remote half of a reconciliation.
type Evaluator interface {
	Evaluate(ctx context.Context, req remote.EvaluationRequest) (*remote.EvaluationResponse, error)
}

// ChildSource supplies the name sent with each request.
type ChildSource interface {
	Child() model.Child
}

// Recorder observes finished reconciliations. Outcome is the status on
// success, the error kind on failure, or "canceled".
type Recorder interface {
	Evaluation(outcome string, elapsed time.Duration)
}

// Outcome labels for Recorder.
const OutcomeCanceled = "canceled"

var categories = map[string]model.Status{
	"On Track":        model.StatusOnTrack,
	"Needs Support":   model.StatusNeedsSupport,
	"Referral Needed": model.StatusReferralNeeded,
}

// MapCategory converts the service's result string to a Status.
func MapCategory(result string) (model.Status, error) {
	s, ok := categories[result]
	if !ok {
		return "", model.NewError(model.KindServiceError, nil, "unrecognized result %q", result)
	}
	return s, nil
}

// Reconciler runs evaluations for one response book. Concurrent calls with
// the same age and snapshot version share a single request, and only the most
// recently started call may publish or clear the result.
type Reconciler struct {
	book     *responses.Book
	client   Evaluator
	child    ChildSource
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	gen    uint64
	latest *model.EvaluationResult
}

type Option func(*Reconciler)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithChild sets where the child's name comes from.
func WithChild(src ChildSource) Option {
	return func(r *Reconciler) {
		r.child = src
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		r.recorder = rec
	}
}

// WithClock overrides time.Now for EvaluatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// New creates a Reconciler.
func New(book *responses.Book, client Evaluator, opts ...Option) *Reconciler {
	r := &Reconciler{
		book:   book,
		client: client,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type call struct {
	ids       []string
	age       int
	childName string
}

// Evaluate snapshots the in-scope Yes answers for ageMonths and submits them.
// Stored responses are never modified. On failure or cancellation the
// published result is cleared.
func (r *Reconciler) Evaluate(ctx context.Context, ageMonths int) (*model.EvaluationResult, error) {
	if ageMonths < 0 {
		return nil, model.NewError(model.KindInvalidInput, nil, "age must be non-negative, got %d", ageMonths)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	start := time.Now()

	snap := r.book.Snapshot()
	c := call{ids: completedInScope(r.book, snap, ageMonths), age: ageMonths, childName: r.childName()}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	key := fmt.Sprintf("%d/%d/%s", ageMonths, snap.Version, c.childName)
	// The shared request outlives any single caller; the client timeout bounds it.
	ch := r.group.DoChan(key, func() (any, error) {
		return r.submit(context.WithoutCancel(ctx), c)
	})

	select {
	case <-ctx.Done():
		r.settle(gen, nil)
		err := ctx.Err()
		if errors.Is(err, context.Canceled) {
			r.record(OutcomeCanceled, start)
			r.logger.Debug("evaluation canceled", zap.Int("age_months", ageMonths))
			return nil, fmt.Errorf("evaluate: %w", err)
		}
		err = model.NewError(model.KindServiceUnavailable, err, "evaluate")
		r.record(string(model.KindOf(err)), start)
		return nil, err

	case res := <-ch:
		if res.Err != nil {
			r.settle(gen, nil)
			r.record(string(model.KindOf(res.Err)), start)
			r.logger.Warn("evaluation failed",
				zap.Int("age_months", ageMonths),
				zap.Int("completed", len(c.ids)),
				zap.Error(res.Err))
			return nil, res.Err
		}
		shared := res.Val.(*model.EvaluationResult)
		out := *shared
		out.CompletedIDs = append([]string(nil), shared.CompletedIDs...)
		published := r.settle(gen, &out)
		r.record(string(out.Status), start)
		r.logger.Info("evaluation complete",
			zap.Int("age_months", ageMonths),
			zap.Int("completed", len(out.CompletedIDs)),
			zap.String("status", string(out.Status)),
			zap.String("request_id", out.RequestID),
			zap.Bool("published", published),
			zap.Bool("shared", res.Shared))
		return &out, nil
	}
}

func (r *Reconciler) submit(ctx context.Context, c call) (*model.EvaluationResult, error) {
	resp, err := r.client.Evaluate(ctx, remote.EvaluationRequest{
		ChildAgeMonths:      c.age,
		CompletedMilestones: c.ids,
		ChildName:           c.childName,
	})
	if err != nil {
		return nil, err
	}
	status, err := MapCategory(resp.Result)
	if err != nil {
		return nil, err
	}
	return &model.EvaluationResult{
		Status:       status,
		Message:      resp.Message,
		CompletedIDs: c.ids,
		AgeMonths:    c.age,
		RequestID:    resp.RequestID,
		EvaluatedAt:  r.now().UTC(),
	}, nil
}

// settle publishes v (or clears when nil) if gen is still the latest call.
func (r *Reconciler) settle(gen uint64, v *model.EvaluationResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return false
	}
	if v == nil {
		r.latest = nil
		return true
	}
	cp := *v
	cp.CompletedIDs = append([]string(nil), v.CompletedIDs...)
	r.latest = &cp
	return true
}

// Latest returns the published result, or nil.
func (r *Reconciler) Latest() *model.EvaluationResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return nil
	}
	cp := *r.latest
	cp.CompletedIDs = append([]string(nil), r.latest.CompletedIDs...)
	return &cp
}

// Reset clears the published result. Calls already in flight can no longer publish.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.latest = nil
}

func (r *Reconciler) childName() string {
	if r.child == nil {
		return model.DefaultChildName
	}
	if name := r.child.Child().Name; name != "" {
		return name
	}
	return model.DefaultChildName
}

func (r *Reconciler) record(outcome string, start time.Time) {
	if r.recorder != nil {
		r.recorder.Evaluation(outcome, time.Since(start))
	}
}

func completedInScope(book *responses.Book, snap responses.Snapshot, ageMonths int) []string {
	ids := []string{}
	for _, m := range book.Catalog().InScope(ageMonths) {
		if snap.Get(m.ID) == model.Yes {
			ids = append(ids, m.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

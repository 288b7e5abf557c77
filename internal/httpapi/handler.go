// Package httpapi exposes the engine over a local JSON HTTP API so any front
// end can drive it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rcliao/milestone-tracker/internal/evidence"
	"github.com/rcliao/milestone-tracker/internal/metrics"
	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/profile"
	"github.com/rcliao/milestone-tracker/internal/progress"
	"github.com/rcliao/milestone-tracker/internal/reconcile"
	"github.com/rcliao/milestone-tracker/internal/remote"
	"github.com/rcliao/milestone-tracker/internal/responses"
)

// statusClientClosed is reported when the caller went away mid-request.
const statusClientClosed = 499

// Chatter answers caregiver questions.
type Chatter interface {
	Chat(ctx context.Context, req remote.ChatRequest) (*remote.ChatResponse, error)
}

// Deps are the services the handler delegates to. Evidence, Chat and Metrics
// are optional; their routes answer 503 when unset.
type Deps struct {
	Book       *responses.Book
	Profile    *profile.Profile
	Reconciler *reconcile.Reconciler
	Evidence   *evidence.Recorder
	Chat       Chatter
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Handler is the thin HTTP layer over the engine.
type Handler struct {
	book       *responses.Book
	profile    *profile.Profile
	calc       *progress.Calculator
	reconciler *reconcile.Reconciler
	evidence   *evidence.Recorder
	chat       Chatter
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		book:       d.Book,
		profile:    d.Profile,
		calc:       progress.NewCalculator(d.Book.Catalog()),
		reconciler: d.Reconciler,
		evidence:   d.Evidence,
		chat:       d.Chat,
		metrics:    d.Metrics,
		logger:     logger.Named("http"),
	}
}

// Router wires every endpoint.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)

	r.Get("/catalog", h.handleCatalog)
	r.Get("/progress", h.handleProgress)

	r.Route("/responses", func(r chi.Router) {
		r.Get("/", h.handleListResponses)
		r.Delete("/", h.handleClear)
		r.Get("/{id}", h.handleGetResponse)
		r.Put("/{id}", h.handleSetResponse)
		r.Post("/{id}/evidence", h.handleAttachEvidence)
	})

	r.Post("/evaluate", h.handleEvaluate)
	r.Get("/evaluation", h.handleLatestEvaluation)
	r.Delete("/evaluation", h.handleResetEvaluation)

	r.Get("/profile", h.handleGetProfile)
	r.Patch("/profile", h.handleUpdateProfile)

	r.Post("/chat", h.handleChat)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	return r
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if h.metrics != nil {
			h.metrics.HTTPRequest(route, status)
		}
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// writeError translates engine error kinds into status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, context.Canceled):
		status = statusClientClosed
		kind = "canceled"
	case kind == model.KindInvalidInput:
		status = http.StatusBadRequest
	case kind == model.KindInvalidMilestoneID:
		status = http.StatusNotFound
	case kind == model.KindServiceError:
		status = http.StatusBadGateway
	case kind == model.KindServiceUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		h.logger.Warn("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Error:     string(kind),
		Message:   err.Error(),
		Retryable: model.IsRetryable(err),
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.NewError(model.KindInvalidInput, err, "decode request body")
	}
	return nil
}

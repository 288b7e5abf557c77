package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/remote"
)

// ageParam reads ?<name>=N, falling back to the profile's age.
func (h *Handler) ageParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.profile.Child().AgeMonths, nil
	}
	age, err := strconv.Atoi(raw)
	if err != nil || age < 0 {
		return 0, model.NewError(model.KindInvalidInput, err, "%s must be a non-negative integer, got %q", name, raw)
	}
	return age, nil
}

type catalogResponse struct {
	Version    string            `json:"version"`
	Tabs       []int             `json:"tabs"`
	Milestones []model.Milestone `json:"milestones"`
}

// handleCatalog lists milestones in scope for ?age=, or shown on tab ?tab=.
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.book.Catalog()
	resp := catalogResponse{Version: cat.Version(), Tabs: cat.Tabs()}

	switch {
	case r.URL.Query().Has("tab"):
		tab, err := h.ageParam(r, "tab")
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.Milestones = cat.ByTypicalAge(tab)
	case r.URL.Query().Has("age"):
		age, err := h.ageParam(r, "age")
		if err != nil {
			h.writeError(w, err)
			return
		}
		resp.Milestones = cat.InScope(age)
	default:
		resp.Milestones = cat.All()
	}
	if resp.Milestones == nil {
		resp.Milestones = []model.Milestone{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	age, err := h.ageParam(r, "age")
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.calc.Summary(h.book.Snapshot(), age))
}

type responsesBody struct {
	Version  uint64                       `json:"version"`
	Answers  map[string]bool              `json:"answers"`
	Evidence map[string]model.EvidenceRef `json:"evidence"`
}

func (h *Handler) handleListResponses(w http.ResponseWriter, r *http.Request) {
	snap := h.book.Snapshot()
	writeJSON(w, http.StatusOK, responsesBody{
		Version:  snap.Version,
		Answers:  snap.Answers(),
		Evidence: h.book.AllEvidence(),
	})
}

type answerBody struct {
	ID       string             `json:"id"`
	Answer   model.Answer       `json:"answer"`
	Evidence *model.EvidenceRef `json:"evidence,omitempty"`
}

func (h *Handler) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.book.Catalog().Has(id) {
		h.writeError(w, model.NewError(model.KindInvalidMilestoneID, nil, "%q", id))
		return
	}
	body := answerBody{ID: id, Answer: h.book.Get(id)}
	if ref, ok := h.book.Evidence(id); ok {
		body.Evidence = &ref
	}
	writeJSON(w, http.StatusOK, body)
}

type setAnswerRequest struct {
	Answer *bool `json:"answer"`
}

func (h *Handler) handleSetResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req setAnswerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Answer == nil {
		h.writeError(w, model.NewError(model.KindInvalidInput, nil, "answer must be true or false"))
		return
	}
	if err := h.book.Set(r.Context(), id, *req.Answer); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerBody{ID: id, Answer: h.book.Get(id)})
}

// handleClear wipes responses and evidence. Requires ?confirm=true.
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		h.writeError(w, model.NewError(model.KindInvalidInput, nil, "clearing all responses requires confirm=true"))
		return
	}
	if err := h.book.ClearAll(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.reconciler.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type attachRequest struct {
	Path string `json:"path"`
}

func (h *Handler) handleAttachEvidence(w http.ResponseWriter, r *http.Request) {
	if h.evidence == nil {
		h.writeError(w, model.NewError(model.KindServiceUnavailable, nil, "evidence capture is not configured"))
		return
	}
	var req attachRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Path == "" {
		h.writeError(w, model.NewError(model.KindInvalidInput, nil, "path is required"))
		return
	}
	capture, err := h.evidence.Attach(r.Context(), chi.URLParam(r, "id"), req.Path, h.profile.Child().AgeMonths)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, capture)
}

type evaluateRequest struct {
	AgeMonths *int `json:"age_months"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	// An empty body evaluates at the profile's age.
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, err)
		return
	}
	age := h.profile.Child().AgeMonths
	if req.AgeMonths != nil {
		age = *req.AgeMonths
	}
	res, err := h.reconciler.Evaluate(r.Context(), age)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleLatestEvaluation(w http.ResponseWriter, r *http.Request) {
	res := h.reconciler.Latest()
	if res == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no evaluation has been published"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleResetEvaluation(w http.ResponseWriter, r *http.Request) {
	h.reconciler.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type profileBody struct {
	Profile  string      `json:"profile"`
	Child    model.Child `json:"child"`
	Language string      `json:"language"`
}

func (h *Handler) profileBody() profileBody {
	return profileBody{
		Profile:  h.profile.Name(),
		Child:    h.profile.Child(),
		Language: h.profile.Language(),
	}
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.profileBody())
}

type updateProfileRequest struct {
	AgeMonths *int    `json:"age_months"`
	ChildName *string `json:"child_name"`
	Language  *string `json:"language"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	ctx := r.Context()
	if req.AgeMonths != nil {
		if err := h.profile.SetAge(ctx, *req.AgeMonths); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.ChildName != nil {
		if err := h.profile.SetChildName(ctx, *req.ChildName); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Language != nil {
		if err := h.profile.SetLanguage(ctx, *req.Language); err != nil {
			h.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.profileBody())
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		h.writeError(w, model.NewError(model.KindServiceUnavailable, nil, "chat is not configured"))
		return
	}
	var req remote.ChatRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.ChildAgeMonths == nil {
		age := h.profile.Child().AgeMonths
		req.ChildAgeMonths = &age
	}
	resp, err := h.chat.Chat(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

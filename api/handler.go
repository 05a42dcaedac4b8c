package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tufnapp/tufngate/backend"
	"github.com/tufnapp/tufngate/downloads"
	"github.com/tufnapp/tufngate/forms"
	"github.com/tufnapp/tufngate/identity"
	"github.com/tufnapp/tufngate/middleware"
	"github.com/tufnapp/tufngate/pkg/tufngate"
)

// Handler serves the hosted write endpoint. Clients send plain text;
// bounds are checked on that text and it is HTML-escaped here on store.
type Handler struct {
	store   backend.Store
	config  *tufngate.Config
	catalog *downloads.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// ConflictResponse is the body of a 409. It mirrors what the database
// reports so clients can match on the code or the message.
type ConflictResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CountResponse is the body of GET /rest/v1/waitlist_count.
type CountResponse struct {
	Count int64 `json:"count"`
}

// SignupRequest is the body of POST /rest/v1/waitlist.
type SignupRequest struct {
	Fingerprint string `json:"fingerprint"`
	Email       string `json:"email"`
	CreatedAt   string `json:"created_at,omitempty"` // accepted, server time is stored
}

// ReviewRequest is the body of POST /rest/v1/reviews.
type ReviewRequest struct {
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// FeedbackRequest is the body of POST /rest/v1/feedback.
type FeedbackRequest struct {
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Category    string `json:"category"`
	Message     string `json:"message"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func decodeJSONStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fieldProblem(w http.ResponseWriter, errs []forms.FieldError) {
	prob := map[string][]string{}
	for _, fe := range errs {
		prob[fe.Field] = append(prob[fe.Field], fe.Msg)
	}
	middleware.WriteProblem(w, http.StatusBadRequest, "validation failed", "one or more fields are invalid", prob)
}

func checkFingerprint(fp string) []forms.FieldError {
	if !identity.IsValid(strings.TrimSpace(fp)) {
		return []forms.FieldError{{Field: "fingerprint", Msg: "must be a UUID v4"}}
	}
	return nil
}

func (h *Handler) policy(w http.ResponseWriter, kind forms.Kind) (tufngate.FormConfig, bool) {
	fc, err := h.config.Policy(kind)
	if err != nil {
		h.logger.Error("missing form policy", zap.String("form", string(kind)), zap.Error(err))
		middleware.WriteProblem(w, http.StatusInternalServerError, "internal error", "form is not configured", nil)
		return fc, false
	}
	return fc, true
}

// insertFailed maps a backend error to a response.
func (h *Handler) insertFailed(w http.ResponseWriter, form forms.Kind, err error) {
	if errors.Is(err, backend.ErrConflict) {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Code:    backend.ConflictCode,
			Message: "duplicate key value violates unique constraint",
		})
		return
	}
	h.logger.Error("insert failed", zap.String("form", string(form)), zap.Error(err))
	middleware.WriteProblem(w, http.StatusInternalServerError, "internal error", "could not store submission", nil)
}

// HandleHealthz reports liveness.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadyz reports whether the backend is reachable.
func (h *Handler) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		middleware.WriteProblem(w, http.StatusServiceUnavailable, "not ready", "backend not reachable", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleSignup handles POST /rest/v1/waitlist.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		middleware.WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	fc, ok := h.policy(w, forms.KindWaitlist)
	if !ok {
		return
	}
	errs := append(checkFingerprint(req.Fingerprint), forms.ValidateWaitlist(fc.Policy, req.Email)...)
	if len(errs) > 0 {
		fieldProblem(w, errs)
		return
	}

	row := backend.Signup{
		Fingerprint: strings.TrimSpace(req.Fingerprint),
		Email:       forms.Sanitize(forms.NormalizeEmail(req.Email), forms.MaxEmailLen),
		CreatedAt:   h.now().UTC(),
	}
	if err := h.store.InsertSignup(r.Context(), row); err != nil {
		h.insertFailed(w, forms.KindWaitlist, err)
		return
	}
	h.logger.Info("signup stored", zap.String("fingerprint", row.Fingerprint))
	w.WriteHeader(http.StatusCreated)
}

// HandleCount handles GET /rest/v1/waitlist_count.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.CountSignups(r.Context())
	if err != nil {
		h.logger.Warn("count failed", zap.Error(err))
		middleware.WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "count not available", nil)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HandleReview handles POST /rest/v1/reviews.
func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		middleware.WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	fc, ok := h.policy(w, forms.KindReview)
	if !ok {
		return
	}
	in := forms.Review{Name: req.Name, Email: req.Email, Rating: req.Rating, Comment: req.Comment}
	errs := append(checkFingerprint(req.Fingerprint), forms.ValidateReview(fc.Policy, in)...)
	if len(errs) > 0 {
		fieldProblem(w, errs)
		return
	}

	row := backend.Review{
		Fingerprint: strings.TrimSpace(req.Fingerprint),
		Name:        forms.Sanitize(req.Name, fc.Fields[forms.FieldName].Max),
		Email:       forms.Sanitize(forms.NormalizeEmail(req.Email), forms.MaxEmailLen),
		Rating:      req.Rating,
		Comment:     forms.Sanitize(req.Comment, fc.Fields[forms.FieldComment].Max),
		CreatedAt:   h.now().UTC(),
	}
	if err := h.store.InsertReview(r.Context(), row); err != nil {
		h.insertFailed(w, forms.KindReview, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleFeedback handles POST /rest/v1/feedback.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		middleware.WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	fc, ok := h.policy(w, forms.KindFeedback)
	if !ok {
		return
	}
	in := forms.Feedback{Name: req.Name, Email: req.Email, Category: req.Category, Message: req.Message}
	errs := append(checkFingerprint(req.Fingerprint), forms.ValidateFeedback(fc.Policy, in)...)
	if len(errs) > 0 {
		fieldProblem(w, errs)
		return
	}

	row := backend.Feedback{
		Fingerprint: strings.TrimSpace(req.Fingerprint),
		Name:        forms.Sanitize(req.Name, fc.Fields[forms.FieldName].Max),
		Email:       forms.Sanitize(forms.NormalizeEmail(req.Email), forms.MaxEmailLen),
		Category:    forms.Clean(req.Category),
		Message:     forms.Sanitize(req.Message, fc.Fields[forms.FieldMessage].Max),
		CreatedAt:   h.now().UTC(),
	}
	if err := h.store.InsertFeedback(r.Context(), row); err != nil {
		h.insertFailed(w, forms.KindFeedback, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleDownloads handles GET /downloads.
func (h *Handler) HandleDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.All())
}

// HandleDownload handles GET /downloads/{os}.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request, os string) {
	b, err := h.catalog.Lookup(os)
	if err != nil {
		middleware.WriteProblem(w, http.StatusNotFound, "not found", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

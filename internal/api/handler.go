package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eugenenazirov/release-desk/internal/mailer"
	"github.com/eugenenazirov/release-desk/internal/secrets"
	"github.com/eugenenazirov/release-desk/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	statusSent   = "Email sent to maintainer."
	statusFailed = "Email sending failed; logged locally."
	followUp     = "We will notify you when we have an update."

	maxBodyBytes = 64 << 10
)

// Dispatcher sends escalation email.
type Dispatcher interface {
	Send(ctx context.Context, msg mailer.Message) (mailer.Receipt, error)
}

// Handler wires the escalation dispatcher and log into HTTP handlers.
type Handler struct {
	dispatcher Dispatcher
	storage    storage.Storage
	maintainer string
	bindings   secrets.Bindings

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithBindings exposes the names and provenance of resolved secrets on
// GET /api/secrets. Values are never rendered.
func WithBindings(bindings secrets.Bindings) HandlerOption {
	return func(h *Handler) {
		h.bindings = bindings
	}
}

// NewHandler constructs a Handler. Escalations without an explicit
// recipient go to maintainer.
func NewHandler(dispatcher Dispatcher, store storage.Storage, maintainer string, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		storage:    store,
		maintainer: maintainer,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	_ = r
	all := h.bindings.All()
	resp := secretsResponse{Secrets: make([]secretEntry, 0, len(all))}
	for _, binding := range all {
		resp.Secrets = append(resp.Secrets, secretEntry{
			Name:   binding.Name,
			Source: string(binding.Provenance),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateEscalation(w http.ResponseWriter, r *http.Request) {
	var req escalationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if strings.TrimSpace(req.Subject) == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "subject is required")
		return
	}

	to := strings.TrimSpace(req.To)
	if to == "" {
		to = h.maintainer
	}

	receipt, sendErr := h.dispatcher.Send(r.Context(), mailer.Message{
		To:      to,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if errors.Is(sendErr, mailer.ErrInvalidMessage) {
		writeError(w, http.StatusBadRequest, "Invalid escalation", sendErr.Error())
		return
	}

	record := storage.Escalation{
		ReferenceID: receipt.ReferenceID,
		To:          to,
		Subject:     receipt.Subject,
		Sent:        receipt.Sent,
		CreatedAt:   h.clock(),
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
	}
	if err := h.storage.Save(record); err != nil {
		writeInternalError(w, err)
		return
	}

	status := statusSent
	if !receipt.Sent {
		status = statusFailed
	}

	writeJSON(w, http.StatusCreated, escalationResponse{
		ReferenceID: receipt.ReferenceID,
		Sent:        receipt.Sent,
		Message:     status + "\nReference ID: " + receipt.ReferenceID + "\n" + followUp,
		CreatedAt:   record.CreatedAt,
	})
}

func (h *Handler) handleListEscalations(w http.ResponseWriter, r *http.Request) {
	_ = r
	records, err := h.storage.List()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := escalationListResponse{Escalations: make([]escalationRecord, 0, len(records))}
	for _, rec := range records {
		resp.Escalations = append(resp.Escalations, toRecord(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetEscalation(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	rec, err := h.storage.Get(ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", "no escalation with reference ID "+ref)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecord(rec))
}

func toRecord(rec storage.Escalation) escalationRecord {
	return escalationRecord{
		ReferenceID: rec.ReferenceID,
		To:          rec.To,
		Subject:     rec.Subject,
		Sent:        rec.Sent,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt,
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type escalationRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	To      string `json:"to,omitempty"`
}

type escalationResponse struct {
	ReferenceID string    `json:"referenceId"`
	Sent        bool      `json:"sent"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

type escalationRecord struct {
	ReferenceID string    `json:"referenceId"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Sent        bool      `json:"sent"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type escalationListResponse struct {
	Escalations []escalationRecord `json:"escalations"`
}

type secretEntry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type secretsResponse struct {
	Secrets []secretEntry `json:"secrets"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

// Package http provides the JSON handlers and router for the SealKeeper API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/SealKeeper/internal/models"
	"github.com/atinyakov/SealKeeper/internal/service"
	"github.com/atinyakov/SealKeeper/internal/store"
)

// Error codes carried in the error body.
const (
	CodeRecoverable = 1
	CodeMismatch    = 2
	CodeCorrupt     = 3
	CodeNoBackup    = 4
)

// RecordService defines the record operations required by RecordHandler.
type RecordService interface {
	Write(ctx context.Context, data, secret string) (models.Record, error)
	Read(ctx context.Context) (models.Availability, string, error)
	Recover(ctx context.Context, secret string) (service.Outcome, error)
	Verify(ctx context.Context, secret string) (service.Verification, error)
}

// RecordHandler handles HTTP requests for the stored record.
type RecordHandler struct {
	RecordService RecordService
}

// WriteRequest is the body of POST /.
type WriteRequest struct {
	Data   string `json:"data"`
	Secret string `json:"secret"`
}

// SecretRequest is the body of POST /verify and POST /recover.
type SecretRequest struct {
	Secret string `json:"secret"`
}

// DataResponse carries the record data.
type DataResponse struct {
	Data string `json:"data"`
}

// RecoverResponse is the body of a successful POST /recover.
type RecoverResponse struct {
	Data    string `json:"data"`
	Outcome string `json:"outcome"`
}

// MessageResponse is the body of a successful POST /verify.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failure.
type ErrorResponse struct {
	Code  int    `json:"code,omitempty"`
	Error string `json:"error"`
}

var errEmptySecret = errors.New("secret must not be empty")

// Read handles GET /. It reports the record without recovering it. No secret
// is presented, so a corrupt backup is reported as recoverable (409) until a
// recover or verify call validates it.
func (h *RecordHandler) Read(w http.ResponseWriter, r *http.Request) {
	avail, data, err := h.RecordService.Read(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, 0, "internal error")
		return
	}

	switch avail {
	case models.Fresh:
		writeJSON(w, http.StatusOK, DataResponse{Data: data})
	case models.MemoryEmptyBackupPresent:
		writeError(w, http.StatusConflict, CodeRecoverable, "record is not loaded; recover it with the secret")
	default:
		writeError(w, http.StatusNotFound, CodeNoBackup, "no record stored")
	}
}

// Write handles POST /. It seals and stores the submitted data.
func (h *RecordHandler) Write(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, 0, "invalid request")
		return
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, 0, errEmptySecret.Error())
		return
	}

	rec, err := h.RecordService.Write(r.Context(), req.Data, req.Secret)
	if errors.Is(err, store.ErrInvalidData) {
		writeError(w, http.StatusBadRequest, 0, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, 0, "failed to save record")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: rec.Data})
}

// Verify handles POST /verify.
func (h *RecordHandler) Verify(w http.ResponseWriter, r *http.Request) {
	secret, ok := decodeSecret(w, r)
	if !ok {
		return
	}

	res, err := h.RecordService.Verify(r.Context(), secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, 0, "internal error")
		return
	}

	switch res.Verdict {
	case service.Matched:
		writeJSON(w, http.StatusOK, MessageResponse{Message: "data is intact"})
	case service.Mismatched:
		writeError(w, http.StatusForbidden, CodeMismatch, "verification failed")
	default:
		writeUnavailable(w, res.Outcome)
	}
}

// Recover handles POST /recover.
func (h *RecordHandler) Recover(w http.ResponseWriter, r *http.Request) {
	secret, ok := decodeSecret(w, r)
	if !ok {
		return
	}

	out, err := h.RecordService.Recover(r.Context(), secret)
	if err != nil {
		writeError(w, http.StatusInternalServerError, 0, "internal error")
		return
	}
	if !out.Available() {
		writeUnavailable(w, out)
		return
	}
	writeJSON(w, http.StatusOK, RecoverResponse{Data: out.Data, Outcome: out.Kind.String()})
}

func decodeSecret(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req SecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, 0, "invalid request")
		return "", false
	}
	if req.Secret == "" {
		writeError(w, http.StatusBadRequest, 0, errEmptySecret.Error())
		return "", false
	}
	return req.Secret, true
}

func writeUnavailable(w http.ResponseWriter, out service.Outcome) {
	if out.Kind == service.OutcomeBackupCorrupt {
		writeError(w, http.StatusUnprocessableEntity, CodeCorrupt, "backup failed validation and was removed")
		return
	}
	writeError(w, http.StatusNotFound, CodeNoBackup, "no backup available")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Error: msg})
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planvault/planvault/pkg/plan"
)

// maxBodyBytes caps document bodies. Plans are small; anything beyond this
// is a client mistake.
const maxBodyBytes = 1 << 20

// errorResponse is the JSON error body. Details carries the violated
// constraints for validation failures and is omitted otherwise.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	doc, err := readBody(w, r)
	if err != nil {
		return
	}

	record, err := s.plans.Create(r.Context(), doc)
	if err != nil {
		var conflict *plan.ConflictError
		if errors.As(err, &conflict) {
			// Duplicate create answers with the existing record and its
			// tag, unchanged.
			writeRecord(w, http.StatusConflict, conflict.Existing)
			return
		}
		s.writeServiceError(w, err)
		return
	}

	writeRecord(w, http.StatusCreated, record)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	record, notModified, err := s.plans.Get(r.Context(), key, r.Header.Get("If-None-Match"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if notModified {
		w.Header().Set("ETag", record.Tag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeRecord(w, http.StatusOK, record)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	doc, err := readBody(w, r)
	if err != nil {
		return
	}

	record, err := s.plans.Replace(r.Context(), key, r.Header.Get("If-Match"), doc)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeRecord(w, http.StatusOK, record)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	patch, err := readBody(w, r)
	if err != nil {
		return
	}

	record, err := s.plans.Patch(r.Context(), key, r.Header.Get("If-Match"), patch)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeRecord(w, http.StatusOK, record)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	if err := s.plans.Delete(r.Context(), key, r.Header.Get("If-Match")); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps plan service errors to status codes. Store
// failures surface as a generic internal error; the detail stays in the
// service's log record.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var ve *plan.ValidationError

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "plan failed validation", ve.Violations)
	case errors.Is(err, plan.ErrNotFound):
		writeError(w, http.StatusNotFound, "plan not found", nil)
	case errors.Is(err, plan.ErrPreconditionFailed):
		writeError(w, http.StatusPreconditionFailed, "precondition failed", nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// readBody reads and bounds the request body. On failure it answers 400
// and returns a non-nil error so the handler can bail out.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body", nil)
		return nil, err
	}
	if len(body) > maxBodyBytes {
		err := errors.New("request body too large")
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, err
	}
	if len(body) == 0 {
		err := errors.New("request body is empty")
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, err
	}
	return body, nil
}

// writeRecord answers with a stored record: its tag in the ETag header and
// the canonical document as the body.
func writeRecord(w http.ResponseWriter, status int, record plan.Record) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", record.Tag)
	w.WriteHeader(status)
	_, _ = w.Write(record.Data)
}

func writeError(w http.ResponseWriter, status int, message string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Details: details})
}

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/musiccy/music-svc/internal/auth"
	"github.com/musiccy/music-svc/internal/catalog"
	"github.com/musiccy/music-svc/internal/repository"
)

// envelope is the uniform response body: {success, message, data, err}.
type envelope struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    any     `json:"data"`
	Err     *string `json:"err"`
}

func (s *Server) respond(w http.ResponseWriter, status int, message string, data any) {
	s.writeJSON(w, status, envelope{Success: true, Message: message, Data: data, Err: nil})
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	errText := message
	s.writeJSON(w, status, envelope{Success: false, Message: message, Data: nil, Err: &errText})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("http: encode response failed", zap.Error(err))
	}
}

// respondMappedError translates service errors into envelope responses.
// Mid-transaction persistence failures all surface as a uniform internal
// error; callers never see partial aggregate state.
func (s *Server) respondMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		s.respondError(w, http.StatusBadRequest, "Validation failed")
	case errors.Is(err, auth.ErrUnauthorized):
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, catalog.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, repository.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, repository.ErrConflict):
		s.respondError(w, http.StatusConflict, "Already exists")
	default:
		s.logger.Error("http: internal error", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

const maxJSONBody = 1 << 20 // 1 MiB

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "Invalid value for field "+typeError.Field)
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "Unable to parse request body")
	}
}

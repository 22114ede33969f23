package httpserver

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type updateUserRequest struct {
	FullName string `json:"fullName" validate:"required,min=3,max=60"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.respond(w, http.StatusOK, "Success", toUserResponse(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateUserRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	updated, err := s.catalog.UpdateUser(r.Context(), user.UUID, strings.TrimSpace(req.FullName))
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", toUserResponse(updated))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := s.catalog.DeactivateUser(r.Context(), user.UUID); err != nil {
		s.respondMappedError(w, err)
		return
	}
	if err := s.auth.Logout(r.Context(), user.UUID); err != nil {
		s.logger.Warn("clear secrets after deactivate", zap.Error(err))
	}
	s.respond(w, http.StatusOK, "Success", nil)
}

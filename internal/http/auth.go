package httpserver

import (
	"net/http"
	"strings"

	"github.com/musiccy/music-svc/internal/domain"
)

type signupRequest struct {
	FullName    string `json:"fullName" validate:"required,min=3,max=60"`
	Email       string `json:"email" validate:"required,email"`
	AdminSecret string `json:"adminSecret" validate:"omitempty,min=1"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"uAccessToken"`
	RefreshToken string `json:"uRefreshToken"`
}

type userResponse struct {
	UUID     string `json:"uuid"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Role     string `json:"role"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		UUID:     user.UUID,
		FullName: user.FullName,
		Email:    user.Email,
		Verified: user.Verified,
		Role:     string(user.Role),
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	user, err := s.auth.Signup(r.Context(), strings.TrimSpace(req.FullName), normalizeEmail(req.Email), req.AdminSecret)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, "Success", toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	if _, err := s.auth.Login(r.Context(), normalizeEmail(req.Email)); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", nil)
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	if err := s.auth.SendOTP(r.Context(), normalizeEmail(req.Email)); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", nil)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Validation failed")
		return
	}

	pair, err := s.auth.VerifyOTP(r.Context(), normalizeEmail(req.Email), req.OTP)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, "Success", tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := strings.TrimSpace(r.Header.Get(refreshTokenHeader))
	if refreshToken == "" {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	accessToken, err := s.auth.Refresh(r.Context(), refreshToken)
	if err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", map[string]string{"uAccessToken": accessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := requestUser(r)
	if !ok {
		s.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err := s.auth.Logout(r.Context(), user.UUID); err != nil {
		s.respondMappedError(w, err)
		return
	}
	s.respond(w, http.StatusOK, "Success", nil)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

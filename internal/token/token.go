// Package token issues and verifies the service's signed tokens. Access,
// refresh and OTP tokens use separate secrets and lifetimes; all bind a
// user identifier (or a hashed OTP) to an expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid covers expired, malformed and badly signed tokens.
var ErrInvalid = errors.New("token: invalid")

// Kind selects the secret and TTL a token is minted with.
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
	OTP     Kind = "otp"
)

// Config holds one kind's secret and lifetime.
type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Service mints and checks tokens for all three kinds.
type Service struct {
	kinds map[Kind]Config
}

// New builds a Service from per-kind configuration.
func New(access, refresh, otp Config) *Service {
	return &Service{kinds: map[Kind]Config{
		Access:  access,
		Refresh: refresh,
		OTP:     otp,
	}}
}

type claims struct {
	UUID    string `json:"uuid,omitempty"`
	OTPHash string `json:"otpHash,omitempty"`
	jwt.RegisteredClaims
}

// IssueUser mints an access or refresh token bound to a user id.
func (s *Service) IssueUser(kind Kind, uuid string) (string, error) {
	if kind == OTP {
		return "", fmt.Errorf("token: otp tokens carry a hash, not a user id")
	}
	return s.sign(kind, claims{UUID: uuid})
}

// IssueOTP mints an OTP token carrying the bcrypt hash of the one-time
// password, so the raw OTP never has to be stored anywhere.
func (s *Service) IssueOTP(otpHash string) (string, error) {
	return s.sign(OTP, claims{OTPHash: otpHash})
}

func (s *Service) sign(kind Kind, c claims) (string, error) {
	cfg, ok := s.kinds[kind]
	if !ok {
		return "", fmt.Errorf("token: unknown kind %q", kind)
	}
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// VerifyUser checks an access or refresh token and returns the bound
// user id.
func (s *Service) VerifyUser(kind Kind, tokenString string) (string, error) {
	c, err := s.verify(kind, tokenString)
	if err != nil {
		return "", err
	}
	if c.UUID == "" {
		return "", ErrInvalid
	}
	return c.UUID, nil
}

// VerifyOTP checks an OTP token and returns the embedded bcrypt hash.
func (s *Service) VerifyOTP(tokenString string) (string, error) {
	c, err := s.verify(OTP, tokenString)
	if err != nil {
		return "", err
	}
	if c.OTPHash == "" {
		return "", ErrInvalid
	}
	return c.OTPHash, nil
}

func (s *Service) verify(kind Kind, tokenString string) (claims, error) {
	cfg, ok := s.kinds[kind]
	if !ok {
		return claims{}, fmt.Errorf("token: unknown kind %q", kind)
	}
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return cfg.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return c, nil
}

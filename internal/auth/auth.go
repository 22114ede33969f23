// Package auth implements signup, OTP email verification and the
// access/refresh token lifecycle. Issued tokens are never stored raw:
// the secrets table keeps bcrypt hashes, and every authenticated request
// is checked against them so logout actually invalidates tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/musiccy/music-svc/internal/domain"
	"github.com/musiccy/music-svc/internal/mail"
	"github.com/musiccy/music-svc/internal/repository"
	"github.com/musiccy/music-svc/internal/store"
	"github.com/musiccy/music-svc/internal/token"
)

// ErrUnauthorized indicates the presented credential is missing, expired,
// revoked, or does not match the stored hash.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Service owns the authentication flows.
type Service struct {
	store       *store.Store
	repos       *repository.Repository
	tokens      *token.Service
	mailer      mail.Sender
	adminSecret string
	logger      *zap.Logger
}

// Params collects the Service dependencies.
type Params struct {
	Store       *store.Store
	Repos       *repository.Repository
	Tokens      *token.Service
	Mailer      mail.Sender
	AdminSecret string
	Logger      *zap.Logger
}

// New wires the auth service.
func New(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       p.Store,
		repos:       p.Repos,
		tokens:      p.Tokens,
		mailer:      p.Mailer,
		adminSecret: p.AdminSecret,
		logger:      logger,
	}
}

// TokenPair is an issued access/refresh token couple.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Signup registers a new, unverified account. Supplying the matching
// admin secret escalates the role; supplying a wrong one is rejected
// outright.
func (s *Service) Signup(ctx context.Context, fullName, email, adminSecret string) (domain.User, error) {
	role := domain.RoleUser
	if adminSecret != "" {
		if s.adminSecret == "" || adminSecret != s.adminSecret {
			return domain.User{}, fmt.Errorf("%w: bad admin secret", ErrUnauthorized)
		}
		role = domain.RoleAdmin
	}

	user, err := s.repos.Users.Create(ctx, repository.UserCreateParams{
		UUID:     uuid.NewString(),
		FullName: fullName,
		Email:    email,
		Role:     role,
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Login checks that an account exists for the email. The actual
// credential exchange happens over the OTP flow.
func (s *Service) Login(ctx context.Context, email string) (domain.User, error) {
	return s.repos.Users.GetByEmail(ctx, email)
}

// SendOTP generates a one-time password, persists an OTP token carrying
// its bcrypt hash, and mails the raw OTP to the user.
func (s *Service) SendOTP(ctx context.Context, email string) error {
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	otpHash, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}
	otpToken, err := s.tokens.IssueOTP(string(otpHash))
	if err != nil {
		return err
	}

	if err := s.repos.Secrets.SetOTPToken(ctx, user.UUID, otpToken); err != nil {
		return fmt.Errorf("store otp token: %w", err)
	}
	if err := s.mailer.SendOTP(ctx, email, otp); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}

// VerifyOTP checks the submitted OTP against the stored token. On
// success the account is marked verified and a fresh token pair is
// issued, with hashes persisted, in one transaction.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (TokenPair, error) {
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := s.repos.Secrets.Get(ctx, user.UUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, fmt.Errorf("%w: no pending otp", ErrUnauthorized)
		}
		return TokenPair{}, err
	}

	otpHash, err := s.tokens.VerifyOTP(secret.OTPToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: otp expired or invalid", ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(otpHash), []byte(otp)) != nil {
		return TokenPair{}, fmt.Errorf("%w: otp mismatch", ErrUnauthorized)
	}

	pair, err := s.issuePair(user.UUID)
	if err != nil {
		return TokenPair{}, err
	}
	accessHash, refreshHash, err := hashPair(pair)
	if err != nil {
		return TokenPair{}, err
	}

	err = s.store.InTx(ctx, func(tx pgx.Tx) error {
		repos := s.repos.WithTx(tx)
		if err := repos.Users.SetVerified(ctx, user.UUID, true); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		if err := repos.Secrets.SetTokenHashes(ctx, user.UUID, accessHash, refreshHash); err != nil {
			return fmt.Errorf("store token hashes: %w", err)
		}
		return nil
	})
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Refresh exchanges a valid, non-revoked refresh token for a new access
// token and rotates the stored access hash.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userUUID, err := s.tokens.VerifyUser(token.Refresh, refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: refresh token invalid", ErrUnauthorized)
	}
	secret, err := s.repos.Secrets.Get(ctx, userUUID)
	if err != nil {
		return "", fmt.Errorf("%w: no issued tokens", ErrUnauthorized)
	}
	if !tokenMatches(secret.RefreshHash, refreshToken) {
		return "", fmt.Errorf("%w: refresh token revoked", ErrUnauthorized)
	}

	user, err := s.repos.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		return "", fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	if !user.Verified || !user.Active {
		return "", fmt.Errorf("%w: account unavailable", ErrUnauthorized)
	}

	accessToken, err := s.tokens.IssueUser(token.Access, userUUID)
	if err != nil {
		return "", err
	}
	accessHash, err := hashToken(accessToken)
	if err != nil {
		return "", err
	}
	if err := s.repos.Secrets.SetAccessHash(ctx, userUUID, accessHash); err != nil {
		return "", fmt.Errorf("rotate access hash: %w", err)
	}
	return accessToken, nil
}

// Logout revokes the user's issued tokens.
func (s *Service) Logout(ctx context.Context, userUUID string) error {
	return s.repos.Secrets.Clear(ctx, userUUID)
}

// Authenticate resolves an access token to its verified, active user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	userUUID, err := s.tokens.VerifyUser(token.Access, accessToken)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: access token invalid", ErrUnauthorized)
	}
	secret, err := s.repos.Secrets.Get(ctx, userUUID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: no issued tokens", ErrUnauthorized)
	}
	if !tokenMatches(secret.AccessHash, accessToken) {
		return domain.User{}, fmt.Errorf("%w: access token revoked", ErrUnauthorized)
	}

	user, err := s.repos.Users.GetByUUID(ctx, userUUID)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	if !user.Verified || !user.Active {
		return domain.User{}, fmt.Errorf("%w: account unavailable", ErrUnauthorized)
	}
	return user, nil
}

func (s *Service) issuePair(userUUID string) (TokenPair, error) {
	accessToken, err := s.tokens.IssueUser(token.Access, userUUID)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := s.tokens.IssueUser(token.Refresh, userUUID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func hashPair(pair TokenPair) (accessHash, refreshHash string, err error) {
	accessHash, err = hashToken(pair.AccessToken)
	if err != nil {
		return "", "", err
	}
	refreshHash, err = hashToken(pair.RefreshToken)
	if err != nil {
		return "", "", err
	}
	return accessHash, refreshHash, nil
}

// hashToken bcrypt-hashes the sha256 digest of the token. Tokens exceed
// bcrypt's 72-byte input limit, so they are digested first.
func hashToken(tokenString string) (string, error) {
	digest := sha256.Sum256([]byte(tokenString))
	hash, err := bcrypt.GenerateFromPassword(digest[:], bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

func tokenMatches(storedHash, tokenString string) bool {
	if storedHash == "" {
		return false
	}
	digest := sha256.Sum256([]byte(tokenString))
	return bcrypt.CompareHashAndPassword([]byte(storedHash), digest[:]) == nil
}

const otpDigits = 6

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

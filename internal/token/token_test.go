package token

import (
	"errors"
	"testing"
	"time"
)

func newTestService() *Service {
	return New(
		Config{Secret: []byte("access-secret"), TTL: 5 * time.Minute},
		Config{Secret: []byte("refresh-secret"), TTL: 96 * time.Hour},
		Config{Secret: []byte("otp-secret"), TTL: 15 * time.Minute},
	)
}

func TestIssueAndVerifyUser(t *testing.T) {
	svc := newTestService()

	for _, kind := range []Kind{Access, Refresh} {
		signed, err := svc.IssueUser(kind, "user-1")
		if err != nil {
			t.Fatalf("issue %s: %v", kind, err)
		}
		uuid, err := svc.VerifyUser(kind, signed)
		if err != nil {
			t.Fatalf("verify %s: %v", kind, err)
		}
		if uuid != "user-1" {
			t.Fatalf("uuid = %q, want user-1", uuid)
		}
	}
}

func TestVerifyUser_WrongKindRejected(t *testing.T) {
	svc := newTestService()

	signed, err := svc.IssueUser(Access, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.VerifyUser(Refresh, signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
}

func TestVerifyUser_Expired(t *testing.T) {
	svc := New(
		Config{Secret: []byte("access-secret"), TTL: -time.Minute},
		Config{Secret: []byte("refresh-secret"), TTL: time.Minute},
		Config{Secret: []byte("otp-secret"), TTL: time.Minute},
	)

	signed, err := svc.IssueUser(Access, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.VerifyUser(Access, signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expired token accepted: %v", err)
	}
}

func TestVerifyUser_Garbage(t *testing.T) {
	svc := newTestService()
	if _, err := svc.VerifyUser(Access, "not-a-jwt"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("garbage accepted: %v", err)
	}
}

func TestIssueUser_OTPKindRejected(t *testing.T) {
	svc := newTestService()
	if _, err := svc.IssueUser(OTP, "user-1"); err == nil {
		t.Fatalf("expected error issuing OTP token with a user id")
	}
}

func TestIssueAndVerifyOTP(t *testing.T) {
	svc := newTestService()

	signed, err := svc.IssueOTP("bcrypt-hash")
	if err != nil {
		t.Fatalf("issue otp: %v", err)
	}
	hash, err := svc.VerifyOTP(signed)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if hash != "bcrypt-hash" {
		t.Fatalf("hash = %q, want bcrypt-hash", hash)
	}

	// A user token is not an OTP token.
	userToken, err := svc.IssueUser(Access, "user-1")
	if err != nil {
		t.Fatalf("issue user: %v", err)
	}
	if _, err := svc.VerifyOTP(userToken); !errors.Is(err, ErrInvalid) {
		t.Fatalf("user token accepted as otp: %v", err)
	}
}

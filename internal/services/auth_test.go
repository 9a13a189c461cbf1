package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/yungbote/lifeos-backend/internal/platform/apierr"
	"github.com/yungbote/lifeos-backend/internal/repos"
	"github.com/yungbote/lifeos-backend/internal/repos/testutil"
)

func newAuthService(t *testing.T) AuthService {
	t.Helper()
	log := testutil.Logger(t)
	db := testutil.DB(t)
	svc, err := NewAuthService(log, repos.NewUserRepo(db, log), "test-secret")
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Token == "" {
		t.Fatal("expected a token")
	}
	if reg.User.Username != "alice" {
		t.Fatalf("username: got=%q", reg.User.Username)
	}

	login, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatalf("user id mismatch: register=%s login=%s", reg.User.ID, login.User.ID)
	}

	userID, username, err := svc.ParseToken(login.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != reg.User.ID || username != "alice" {
		t.Fatalf("claims: got id=%s username=%q", userID, username)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "bob", "other")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apierr, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Code != "Username already exists" {
		t.Fatalf("got status=%d code=%q", apiErr.Status, apiErr.Code)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, tc := range []struct{ username, password string }{
		{"carol", "wrong"},
		{"nobody", "pw"},
	} {
		_, err := svc.Login(ctx, tc.username, tc.password)
		var apiErr *apierr.Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected apierr, got %v", tc.username, err)
		}
		if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "Invalid credentials" {
			t.Fatalf("%s: got status=%d code=%q", tc.username, apiErr.Status, apiErr.Code)
		}
	}
}

func TestParseTokenRejectsTampered(t *testing.T) {
	svc := newAuthService(t)
	reg, err := svc.Register(context.Background(), "dave", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.ParseToken(reg.Token + "x"); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
	if _, _, err := svc.ParseToken("not-a-jwt"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}

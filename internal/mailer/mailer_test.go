package mailer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendVerification_Unconfigured(t *testing.T) {
	c := NewClient("", "", "no-reply@test.local", "http://localhost:3000", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if c.Configured() {
		t.Error("empty endpoint should report unconfigured")
	}
	// Unconfigured delivery must not fail registration.
	if err := c.SendVerification(context.Background(), "a@b.test", "tok"); err != nil {
		t.Fatalf("SendVerification unconfigured: %v", err)
	}
}

func TestSendVerification_PostsJSON(t *testing.T) {
	var got mailRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", "no-reply@test.local", "http://app.test", nil, WithHTTPClient(srv.Client()))
	if err := c.SendVerification(context.Background(), "user@test.local", "tok-123"); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("authorization = %q, want %q", auth, "Bearer secret")
	}
	if got.To != "user@test.local" {
		t.Errorf("to = %q, want %q", got.To, "user@test.local")
	}
	if got.From != "no-reply@test.local" {
		t.Errorf("from = %q, want %q", got.From, "no-reply@test.local")
	}
	if !strings.Contains(got.TextBody, "http://app.test/auth/verify-email?token=tok-123") {
		t.Errorf("text body missing verification link: %q", got.TextBody)
	}
}

func TestSendVerification_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "no-reply@test.local", "http://app.test", nil, WithHTTPClient(srv.Client()))
	if err := c.SendVerification(context.Background(), "user@test.local", "tok"); err == nil {
		t.Fatal("expected error on 5xx from mail API")
	}
}

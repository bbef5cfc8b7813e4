package apikey

import (
	"context"
	"net/http"
	"testing"

	"github.com/rhuss/relais/pkg/auth"
)

func newTestAuth() *Authenticator {
	return New([]RawKeyEntry{
		{
			Key: "sk-test-key-1",
			Identity: auth.Identity{
				Subject: "planner-main",
				Role:    "agent",
			},
		},
		{
			Key: "sk-test-key-2",
			Identity: auth.Identity{
				Subject: "web-ui",
				Role:    "service",
			},
		},
	})
}

func TestValidKey(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer sk-test-key-1")

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "planner-main" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "planner-main")
	}
	if result.Identity.Role != "agent" {
		t.Errorf("Role = %q, want %q", result.Identity.Role, "agent")
	}
}

func TestInvalidKey(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer sk-wrong-key")

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No", result.Decision)
	}
}

func TestNoHeader(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain", result.Decision)
	}
}

func TestNonBearerHeader(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain (non-Bearer)", result.Decision)
	}
}

func TestEmptyBearerToken(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer ")

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (empty token)", result.Decision)
	}
}

func TestSecondKey(t *testing.T) {
	a := newTestAuth()
	r, _ := http.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer sk-test-key-2")

	result := a.Authenticate(context.Background(), r)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes", result.Decision)
	}
	if result.Identity.Subject != "web-ui" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "web-ui")
	}
}

func TestIdentityCopied(t *testing.T) {
	a := newTestAuth()

	r1, _ := http.NewRequest("GET", "/", nil)
	r1.Header.Set("Authorization", "Bearer sk-test-key-1")
	first := a.Authenticate(context.Background(), r1)
	first.Identity.Subject = "mutated"

	r2, _ := http.NewRequest("GET", "/", nil)
	r2.Header.Set("Authorization", "Bearer sk-test-key-1")
	second := a.Authenticate(context.Background(), r2)

	if second.Identity.Subject != "planner-main" {
		t.Errorf("Subject = %q, want planner-main (identity must be copied per request)", second.Identity.Subject)
	}
}

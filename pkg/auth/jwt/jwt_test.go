package jwt

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/relais/pkg/auth"
)

// testSecret is the shared HMAC secret used throughout the tests.
const testSecret = "test-signing-secret"

// createSignedToken creates a JWT signed with the test secret.
func createSignedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return tokenStr
}

// newTestAuthenticator creates a JWT authenticator with issuer and
// audience validation enabled.
func newTestAuthenticator(cfgOverride func(*Config)) *Authenticator {
	cfg := Config{
		Secret:   testSecret,
		Issuer:   "https://auth.example.com",
		Audience: "relais",
	}
	if cfgOverride != nil {
		cfgOverride(&cfg)
	}
	return New(cfg)
}

// baseClaims returns a claim set that passes all default checks.
func baseClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub": "planner-main",
		"iss": "https://auth.example.com",
		"aud": "relais",
		"exp": time.Now().Add(1 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
}

func authenticate(t *testing.T, authn *Authenticator, token string) auth.Result {
	t.Helper()
	r := httptest.NewRequest("GET", "/", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return authn.Authenticate(context.Background(), r)
}

func TestJWT_ValidToken(t *testing.T) {
	authn := newTestAuthenticator(nil)
	token := createSignedToken(t, baseClaims())

	result := authenticate(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity == nil {
		t.Fatal("Identity is nil")
	}
	if result.Identity.Subject != "planner-main" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "planner-main")
	}
}

func TestJWT_ExpiredToken(t *testing.T) {
	authn := newTestAuthenticator(nil)

	claims := baseClaims()
	claims["exp"] = time.Now().Add(-1 * time.Hour).Unix()
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (expired)", result.Decision)
	}
}

func TestJWT_WrongSecret(t *testing.T) {
	authn := newTestAuthenticator(nil)

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, baseClaims())
	tokenStr, err := token.SignedString([]byte("a-different-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}

	result := authenticate(t, authn, tokenStr)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (bad signature)", result.Decision)
	}
}

func TestJWT_WrongAudience(t *testing.T) {
	authn := newTestAuthenticator(nil)

	claims := baseClaims()
	claims["aud"] = "other-api"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (wrong audience)", result.Decision)
	}
}

func TestJWT_WrongIssuer(t *testing.T) {
	authn := newTestAuthenticator(nil)

	claims := baseClaims()
	claims["iss"] = "https://evil.example.com"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (wrong issuer)", result.Decision)
	}
}

func TestJWT_NoBearerToken(t *testing.T) {
	authn := newTestAuthenticator(nil)

	// No Authorization header.
	result := authenticate(t, authn, "")
	if result.Decision != auth.Abstain {
		t.Errorf("no header: Decision = %d, want Abstain", result.Decision)
	}

	// Non-Bearer scheme.
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	result = authn.Authenticate(context.Background(), r)
	if result.Decision != auth.Abstain {
		t.Errorf("basic auth: Decision = %d, want Abstain", result.Decision)
	}

	// Empty bearer token.
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer ")
	result = authn.Authenticate(context.Background(), r)
	if result.Decision != auth.No {
		t.Errorf("empty token: Decision = %d, want No", result.Decision)
	}
}

func TestJWT_InvalidToken(t *testing.T) {
	authn := newTestAuthenticator(nil)

	result := authenticate(t, authn, "not.a.jwt")

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (garbage token)", result.Decision)
	}
	if result.Err == nil {
		t.Error("expected an error for an invalid token")
	}
}

func TestJWT_RoleExtraction(t *testing.T) {
	authn := newTestAuthenticator(nil)

	claims := baseClaims()
	claims["role"] = "agent"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Role != "agent" {
		t.Errorf("Role = %q, want %q", result.Identity.Role, "agent")
	}
}

func TestJWT_ScopesExtraction(t *testing.T) {
	authn := newTestAuthenticator(nil)

	tests := []struct {
		name  string
		scope any
		want  []string
	}{
		{"space separated", "invoke:functions read:calls", []string{"invoke:functions", "read:calls"}},
		{"json array", []any{"invoke:functions", "read:calls"}, []string{"invoke:functions", "read:calls"}},
		{"empty string", "", nil},
		{"missing", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := baseClaims()
			if tt.scope != nil {
				claims["scope"] = tt.scope
			}
			token := createSignedToken(t, claims)

			result := authenticate(t, authn, token)
			if result.Decision != auth.Yes {
				t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
			}

			got := result.Identity.Scopes
			if len(got) != len(tt.want) {
				t.Fatalf("Scopes = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Scopes[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestJWT_CustomClaims(t *testing.T) {
	authn := newTestAuthenticator(func(cfg *Config) {
		cfg.UserClaim = "preferred_username"
		cfg.RoleClaim = "caller_role"
	})

	claims := baseClaims()
	delete(claims, "sub")
	claims["preferred_username"] = "research-agent"
	claims["caller_role"] = "agent"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes; err=%v", result.Decision, result.Err)
	}
	if result.Identity.Subject != "research-agent" {
		t.Errorf("Subject = %q, want %q", result.Identity.Subject, "research-agent")
	}
	if result.Identity.Role != "agent" {
		t.Errorf("Role = %q, want %q", result.Identity.Role, "agent")
	}
}

func TestJWT_MissingSubClaim(t *testing.T) {
	authn := newTestAuthenticator(nil)

	claims := baseClaims()
	delete(claims, "sub")
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.No {
		t.Fatalf("Decision = %d, want No (missing sub)", result.Decision)
	}
}

func TestJWT_NoIssuerValidation(t *testing.T) {
	authn := newTestAuthenticator(func(cfg *Config) {
		cfg.Issuer = ""
	})

	claims := baseClaims()
	claims["iss"] = "https://anything.example.com"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes when issuer validation is off; err=%v", result.Decision, result.Err)
	}
}

func TestJWT_NoAudienceValidation(t *testing.T) {
	authn := newTestAuthenticator(func(cfg *Config) {
		cfg.Audience = ""
	})

	claims := baseClaims()
	claims["aud"] = "someone-else"
	token := createSignedToken(t, claims)

	result := authenticate(t, authn, token)

	if result.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes when audience validation is off; err=%v", result.Decision, result.Err)
	}
}

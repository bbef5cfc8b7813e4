package gateway

import (
	"fmt"

	"github.com/rhuss/relais/pkg/auth"
	"github.com/rhuss/relais/pkg/auth/apikey"
	"github.com/rhuss/relais/pkg/auth/jwt"
	"github.com/rhuss/relais/pkg/auth/noop"
	"github.com/rhuss/relais/pkg/config"
)

// BuildAuthChain constructs the authenticator chain and rate limiter
// from configuration. type "none" yields an accept-all chain; "apikey"
// and "jwt" chains reject unauthenticated requests.
func BuildAuthChain(cfg *config.Config) (*auth.Chain, auth.RateLimiter, error) {
	var chain *auth.Chain

	switch cfg.Auth.Type {
	case "", "none":
		chain = &auth.Chain{
			Authenticators:  []auth.Authenticator{&noop.Authenticator{}},
			DefaultDecision: auth.Yes,
		}
	case "apikey":
		var entries []apikey.RawKeyEntry
		for _, k := range cfg.APIKeyEntries() {
			if k.Key == "" {
				continue
			}
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, Role: k.Role},
			})
		}
		if len(entries) == 0 {
			return nil, nil, fmt.Errorf("auth type is apikey but no API keys are configured")
		}
		chain = &auth.Chain{
			Authenticators:  []auth.Authenticator{apikey.New(entries)},
			DefaultDecision: auth.No,
		}
	case "jwt":
		if cfg.Auth.JWT.Secret == "" {
			return nil, nil, fmt.Errorf("auth type is jwt but no signing secret is configured")
		}
		chain = &auth.Chain{
			Authenticators: []auth.Authenticator{jwt.New(jwt.Config{
				Secret:   cfg.Auth.JWT.Secret,
				Issuer:   cfg.Auth.JWT.Issuer,
				Audience: cfg.Auth.JWT.Audience,
			})},
			DefaultDecision: auth.No,
		}
	default:
		return nil, nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled {
		limiter = auth.NewInProcessLimiter(cfg.Auth.RateLimit.Roles, cfg.Auth.RateLimit.RequestsPerMinute)
	}

	return chain, limiter, nil
}

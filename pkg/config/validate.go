package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// executor.port must be positive.
	if c.Executor.Port <= 0 {
		errs = append(errs, fmt.Errorf("executor.port must be > 0, got %d", c.Executor.Port))
	}

	// executor.timeout must be positive.
	if c.Executor.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("executor.timeout must be > 0, got %s", c.Executor.Timeout))
	}

	// executor.manifest_path is required.
	if c.Executor.ManifestPath == "" {
		errs = append(errs, fmt.Errorf("executor.manifest_path is required"))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "memory", "postgres", "redis":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"redis\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// If storage.type is "redis", an address must be set.
	if c.Storage.Type == "redis" && c.Storage.Redis.Addr == "" {
		errs = append(errs, fmt.Errorf("storage.redis.addr is required when storage.type is \"redis\""))
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	// If auth.type is "jwt", a secret must come from somewhere.
	if c.Auth.Type == "jwt" {
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.type is \"jwt\""))
		}
	}

	// If auth.type is "apikey", at least one key must be configured.
	if c.Auth.Type == "apikey" && len(c.APIKeyEntries()) == 0 {
		errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
	}

	// log.level must be a known value.
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.level must be \"trace\", \"debug\", \"info\", \"warn\", or \"error\", got %q", c.Log.Level))
	}

	// log.format must be a known value.
	switch c.Log.Format {
	case "text", "json":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// APIKeyEntries returns the configured API keys that carry a usable
// key value or file reference.
func (c *Config) APIKeyEntries() []APIKeyConfig {
	var out []APIKeyConfig
	for _, k := range c.Auth.APIKeys {
		if k.Key != "" || k.KeyFile != "" {
			out = append(out, k)
		}
	}
	return out
}

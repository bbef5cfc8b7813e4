// Package config provides unified configuration for relais.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RELAIS_ prefix, plus the
//     executor-contract variables AGENT_NAME, FUNC_SERVER_PORT,
//     PROXY_TIMEOUT and LLM_GATEWAY_BASE_URL)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML config accepts Go duration
// strings ("30s", "1h30m"). Bare integers are nanoseconds, matching
// encoding/json's treatment of time.Duration.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v (%T)", raw, raw)
	}
	return nil
}

// Config holds all configuration for the relais gateway and libraries.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Executor      ExecutorConfig      `yaml:"executor"`
	Agent         AgentConfig         `yaml:"agent"`
	Sources       Sources             `yaml:"sources"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Log           LogConfig           `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds gateway HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`         // default: 8080
	ReadTimeout Duration `yaml:"read_timeout"` // default: 30s
	// WriteTimeout defaults to 0 (disabled): invocations proxied through
	// the gateway may legitimately run for the full executor timeout.
	WriteTimeout Duration `yaml:"write_timeout"`
}

// ExecutorConfig holds the local executor endpoint settings used by
// every function proxy.
type ExecutorConfig struct {
	Host         string   `yaml:"host"`          // default: "localhost"
	Port         int      `yaml:"port"`          // default: 12306, env FUNC_SERVER_PORT
	Timeout      Duration `yaml:"timeout"`       // total per-call timeout, default: 1h, env PROXY_TIMEOUT (seconds)
	ManifestPath string   `yaml:"manifest_path"` // default: "mcp_function_list.json"
}

// AgentConfig holds the process-wide caller identity.
type AgentConfig struct {
	Name string `yaml:"name"` // env AGENT_NAME
}

// Sources holds the shared configuration handed to every data source
// factory at registry initialization.
type Sources struct {
	// ProxyBaseURL is the external-API proxy all vendor traffic is
	// routed through (env LLM_GATEWAY_BASE_URL).
	ProxyBaseURL   string      `yaml:"proxy_base_url"`
	RequestTimeout Duration    `yaml:"request_timeout"` // per vendor request, default: 60s
	BizID          string      `yaml:"biz_id"`          // X-Biz-Id header value, default: "relais-agent"
	Hosts          VendorHosts `yaml:"hosts"`
	Excluded       []string    `yaml:"excluded"` // factory names skipped at registration
}

// VendorHosts maps each vendor to the upstream host the proxy should
// dial, sent as the X-Original-Host header.
type VendorHosts struct {
	Twitter     string `yaml:"twitter"`
	Yahoo       string `yaml:"yahoo"`
	Booking     string `yaml:"booking"`
	Pinterest   string `yaml:"pinterest"`
	Tripadvisor string `yaml:"tripadvisor"`
	Commodities string `yaml:"commodities"`
	Metal       string `yaml:"metal"`
	Serper      string `yaml:"serper"`
}

// StorageConfig holds call ledger settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "redis", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr         string   `yaml:"addr"`
	Password     string   `yaml:"password"`
	PasswordFile string   `yaml:"password_file"` // _file variant for password
	DB           int      `yaml:"db"`
	TTL          Duration `yaml:"ttl"` // 0 keeps records forever
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds per-caller request rates on the gateway.
type RateLimitConfig struct {
	Enabled           bool           `yaml:"enabled"`             // default: false
	RequestsPerMinute int            `yaml:"requests_per_minute"` // fallback for roles without an override, 0 = unlimited
	Roles             map[string]int `yaml:"roles"`               // per-role overrides
}

// APIKeyConfig describes a single API key entry. Subject becomes the
// caller identity for invocations made through the gateway.
type APIKeyConfig struct {
	Key     string `yaml:"key"`
	KeyFile string `yaml:"key_file"` // _file variant for key
	Subject string `yaml:"subject"`
	Role    string `yaml:"role"`
}

// JWTConfig holds settings for HS256 bearer token verification.
type JWTConfig struct {
	Secret     string `yaml:"secret"`
	SecretFile string `yaml:"secret_file"` // _file variant for secret
	Issuer     string `yaml:"issuer"`   // optional expected iss claim
	Audience   string `yaml:"audience"` // optional expected aud claim
}

// MCPConfig holds the capability-discovery MCP bridge settings.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/mcp"
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn" or "error" ("trace" for wire dumps), default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories, env RELAIS_DEBUG wins
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in. The
// vendor host defaults match the upstream APIs the builtin sources
// were written against.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        8080,
			ReadTimeout: Duration(30 * time.Second),
		},
		Executor: ExecutorConfig{
			Host:         "localhost",
			Port:         12306,
			Timeout:      Duration(time.Hour),
			ManifestPath: "mcp_function_list.json",
		},
		Sources: Sources{
			RequestTimeout: Duration(60 * time.Second),
			BizID:          "relais-agent",
			Hosts: VendorHosts{
				Twitter:     "twitter154.p.rapidapi.com",
				Yahoo:       "apidojo-yahoo-finance-v1.p.rapidapi.com",
				Booking:     "booking-com15.p.rapidapi.com",
				Pinterest:   "unofficial-pinterest-api.p.rapidapi.com",
				Tripadvisor: "api.content.tripadvisor.com",
				Commodities: "commodities-apised.p.rapidapi.com",
				Metal:       "live-gold-prices.p.rapidapi.com",
				Serper:      "google.serper.dev",
			},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

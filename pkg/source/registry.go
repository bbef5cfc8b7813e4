package source

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/observability"
)

// ErrNotFound is returned when a name resolves to no registered source.
var ErrNotFound = errors.New("does not exist")

// DefaultSuppressed lists the data sources omitted from basic-info
// listings because they are surfaced through a different channel.
var DefaultSuppressed = []string{"yahoo_finance", "twitter", "booking", "pinterest", "tripadvisor"}

// Registry holds every live source instance, keyed by source name,
// with data sources and function-backed sources in parallel maps.
//
// A Registry is built exactly once: Initialize is idempotent and safe
// under a concurrent first call. Lookups never return placeholders.
type Registry struct {
	mu          sync.RWMutex
	initialized atomic.Bool

	sources    map[string]Source
	functions  map[string]Source
	suppressed map[string]struct{}
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSuppressed replaces the default basic-info suppression set.
func WithSuppressed(names ...string) RegistryOption {
	return func(r *Registry) {
		r.suppressed = make(map[string]struct{}, len(names))
		for _, n := range names {
			r.suppressed[n] = struct{}{}
		}
	}
}

// WithLogger sets the logger for registry diagnostics.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sources:   make(map[string]Source),
		functions: make(map[string]Source),
		logger:    slog.Default(),
	}
	WithSuppressed(DefaultSuppressed...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize instantiates every factory with the shared config and
// registers the results. A factory that fails, whether by error or by
// panic, is logged and skipped; partial population is expected.
// Factories whose name appears in cfg.Excluded are not constructed.
//
// Only the first call does work; concurrent first calls execute
// exactly one initialization pass and every caller observes the fully
// populated registry afterwards.
func (r *Registry) Initialize(cfg *config.Sources, factories []Factory) {
	if r.initialized.Load() {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized.Load() {
		return
	}

	if cfg == nil {
		cfg = &config.Sources{}
	}

	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, n := range cfg.Excluded {
		excluded[n] = struct{}{}
	}

	for _, f := range factories {
		if _, skip := excluded[f.Name]; skip {
			r.logger.Debug("source excluded by config", "source", f.Name)
			continue
		}

		s, err := buildSource(f, cfg)
		if err != nil {
			r.logger.Error("loading source failed", "source", f.Name, "error", err)
			continue
		}

		name := s.Info().Name
		if name == "" {
			name = f.Name
		}
		switch f.Class {
		case ClassFunction:
			r.functions[name] = s
		default:
			r.sources[name] = s
		}
	}

	observability.RegistrySources.WithLabelValues(string(ClassDataSource)).Set(float64(len(r.sources)))
	observability.RegistrySources.WithLabelValues(string(ClassFunction)).Set(float64(len(r.functions)))

	r.logger.Info("source registry initialized",
		"data_sources", len(r.sources),
		"functions", len(r.functions),
	)

	r.initialized.Store(true)
}

// buildSource isolates factory panics so one broken constructor cannot
// abort registry initialization.
func buildSource(f Factory, cfg *config.Sources) (s Source, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s, err = nil, fmt.Errorf("constructor panicked: %v", rec)
		}
	}()
	return f.New(cfg)
}

// Get returns the data source registered under name.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("data source %s: %w", name, ErrNotFound)
	}
	return s, nil
}

// GetFunction returns the function-backed source registered under name.
func (r *Registry) GetFunction(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.functions[name]
	if !ok {
		return nil, fmt.Errorf("function %s: %w", name, ErrNotFound)
	}
	return s, nil
}

// SourceNames returns the registered data source names, sorted.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.sources)
}

// FunctionNames returns the registered function names, sorted.
func (r *Registry) FunctionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.functions)
}

func sortedKeys(m map[string]Source) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BasicInfo is the wire shape of one basic-info listing entry.
type BasicInfo struct {
	SourceName  string `json:"source_name"`
	Description string `json:"description"`
}

// ListBasicInfo returns display name and description for every
// registered data source except the suppressed set. The listing is
// deliberately not exhaustive; suppressed sources remain registered
// and fully usable.
func (r *Registry) ListBasicInfo() map[string]BasicInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]BasicInfo)
	for name, s := range r.sources {
		if _, hidden := r.suppressed[name]; hidden {
			continue
		}
		info := s.Info()
		out[name] = BasicInfo{
			SourceName:  displayName(info, name),
			Description: description(info),
		}
	}
	return out
}

func displayName(info Info, key string) string {
	if info.DisplayName != "" {
		return info.DisplayName
	}
	if info.Name != "" {
		return info.Name
	}
	return key
}

func description(info Info) string {
	if info.Description != "" {
		return info.Description
	}
	return "No description available"
}

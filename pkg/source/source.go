package source

import "github.com/rhuss/relais/pkg/config"

// Class separates capability providers into the two namespaces the
// registry serves.
type Class string

const (
	ClassDataSource Class = "data_source"
	ClassFunction   Class = "function"
)

// Info identifies a source. Name is the registry key; DisplayName is
// the human-facing title used in rendered docs.
type Info struct {
	Name        string
	DisplayName string
	Description string
}

// ParamDoc documents one capability parameter. Type is a display
// string; nothing validates it against the implementation.
type ParamDoc struct {
	Name string
	Type string
	Doc  string
}

// ReturnDoc documents a capability's return value. Doc typically
// shows the result envelope with per-field commentary.
type ReturnDoc struct {
	Type string
	Doc  string
}

// Capability is the structured metadata record for one operation a
// source exposes. Documentation is the single source of truth: an
// operation without a Summary is treated as undocumented and never
// rendered.
type Capability struct {
	Name       string
	Summary    string
	Parameters []ParamDoc
	Returns    ReturnDoc
	Example    string

	// NotImplemented marks a declared-but-stubbed operation. Stubs
	// stay out of rendered docs until they gain an implementation.
	NotImplemented bool
}

// Source is the contract every data source and function provider
// implements.
type Source interface {
	Info() Info
	Capabilities() []Capability
}

// Factory registers a source constructor under a fixed name. The
// registry instantiates factories with the shared sources config and
// keys the result by Info().Name.
type Factory struct {
	Name  string
	Class Class
	New   func(cfg *config.Sources) (Source, error)
}

// Failure wraps an error into the result envelope every source
// operation returns on failure.
func Failure(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

// Success wraps a payload into the result envelope every source
// operation returns on success.
func Success(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

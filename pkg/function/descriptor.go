package function

// Kind classifies how the executor hosts a declared function.
type Kind string

const (
	// KindBasic is a plain remote function. Positional arguments are
	// mapped left-to-right onto the declared parameter names.
	KindBasic Kind = "basic"

	// KindMCP is a function backed by an MCP tool. Calls take a single
	// pre-built parameter mapping that is forwarded verbatim.
	KindMCP Kind = "mcp"

	// KindAgent is a function that dispatches to another agent.
	// Agent functions are invisible to non-planner callers.
	KindAgent Kind = "agent"
)

// Parameter declares a single named parameter of a function. Manifest
// parameter objects may carry additional keys (type, description);
// only the name participates in argument mapping.
type Parameter struct {
	Name string `json:"name"`
}

// Descriptor declares one callable function as listed in the executor
// manifest.
type Descriptor struct {
	// Name is the local function name callers use.
	Name string `json:"name"`

	// OriginName, when set, is the name the executor knows the
	// function by. Manifests use it to alias remote functions.
	OriginName string `json:"origin_name,omitempty"`

	// Parameters are the declared parameters in call order.
	Parameters []Parameter `json:"parameters"`

	// Kind defaults to "basic" when the manifest omits it. Unknown
	// kinds pass through untouched; the executor owns their meaning.
	Kind Kind `json:"kind,omitempty"`
}

// Target returns the function name sent to the executor: OriginName
// when set, otherwise Name.
func (d *Descriptor) Target() string {
	if d.OriginName != "" {
		return d.OriginName
	}
	return d.Name
}

package source

import "sort"

// reservedNames are identity and metadata accessors that never surface
// as capabilities, whatever a source declares.
var reservedNames = map[string]struct{}{
	"info":             {},
	"capabilities":     {},
	"name":             {},
	"source_name":      {},
	"get_api_info":     {},
	"get_capabilities": {},
	"get_source_info":  {},
}

// Describe returns the renderable capabilities of a source: reserved
// accessor names, undocumented operations, and not-implemented stubs
// are filtered out, and the result is sorted by operation name.
func Describe(s Source) []Capability {
	var out []Capability
	for _, c := range s.Capabilities() {
		if _, reserved := reservedNames[c.Name]; reserved {
			continue
		}
		if c.Summary == "" {
			continue
		}
		if c.NotImplemented {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

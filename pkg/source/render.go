package source

import (
	"fmt"
	"strings"
)

// docHeader opens every successfully rendered capability document.
const docHeader = "# Available data sources\n"

// RenderCapabilityDoc returns the markdown capability document for
// the named data source. An unknown name yields a single not-found
// line with no header.
func (r *Registry) RenderCapabilityDoc(name string) string {
	s, err := r.Get(name)
	if err != nil {
		return fmt.Sprintf("# %s %s does not exist", ClassDataSource, name)
	}
	return renderDoc(name, s)
}

// RenderFunctionDoc returns the markdown capability document for the
// named function-backed source.
func (r *Registry) RenderFunctionDoc(name string) string {
	s, err := r.GetFunction(name)
	if err != nil {
		return fmt.Sprintf("# %s %s does not exist", ClassFunction, name)
	}
	return renderDoc(name, s)
}

// RenderAllFunctionDocs concatenates the capability documents of every
// registered function, in name order, separated by a newline.
func (r *Registry) RenderAllFunctionDocs() string {
	names := r.FunctionNames()
	docs := make([]string, 0, len(names))
	for _, n := range names {
		docs = append(docs, r.RenderFunctionDoc(n))
	}
	return strings.Join(docs, "\n")
}

// renderDoc assembles the markdown document for one source. Sections
// are emitted as individual lines and joined once at the end, so
// every block keeps the blank-line spacing planners were tuned on.
func renderDoc(key string, s Source) string {
	info := s.Info()
	lines := []string{
		docHeader,
		fmt.Sprintf("## %s", displayName(info, key)),
		description(info) + "\n",
	}

	for _, c := range Describe(s) {
		lines = append(lines, fmt.Sprintf("### %s", c.Name))
		lines = append(lines, c.Summary+"\n")

		if len(c.Parameters) > 0 {
			lines = append(lines, "**Parameters:**")
			for _, p := range c.Parameters {
				b := fmt.Sprintf("- `%s`", p.Name)
				if p.Type != "" {
					b += fmt.Sprintf(": %s", p.Type)
				}
				if p.Doc != "" {
					b += fmt.Sprintf(" - %s", p.Doc)
				}
				lines = append(lines, b)
			}
			lines = append(lines, "")
		}

		if c.Returns.Type != "" || c.Returns.Doc != "" {
			lines = append(lines, "**Returns:**")
			if c.Returns.Type != "" {
				lines = append(lines, fmt.Sprintf("Type: `%s`", c.Returns.Type))
			}
			if c.Returns.Doc != "" {
				lines = append(lines, "```", c.Returns.Doc, "```")
			}
			lines = append(lines, "")
		}

		if c.Example != "" {
			lines = append(lines, "**Example:**", "```go", strings.TrimSpace(c.Example), "```", "")
		}
	}

	lines = append(lines, "---\n")
	return strings.Join(lines, "\n")
}

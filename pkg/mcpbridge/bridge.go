package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/source"
)

// Bridge serves capability discovery over MCP. It holds the source
// registry and the manifest function declarations the gateway was
// started with.
type Bridge struct {
	registry    *source.Registry
	descriptors []function.Descriptor
	byName      map[string]function.Descriptor
	server      *mcp.Server
}

// describeSourceInput names the data source to document.
type describeSourceInput struct {
	Name string `json:"name" jsonschema_description:"Source name as listed by list_sources"`
}

// describeFunctionInput names the manifest function to describe.
type describeFunctionInput struct {
	Name string `json:"name" jsonschema_description:"Function name as listed by list_functions"`
}

// New creates a bridge over the given registry and manifest functions.
// The descriptor slice keeps manifest order; when two entries share a
// name, the later one wins lookups, matching proxy construction.
func New(reg *source.Registry, descriptors []function.Descriptor) *Bridge {
	b := &Bridge{
		registry:    reg,
		descriptors: descriptors,
		byName:      make(map[string]function.Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		b.byName[d.Name] = d
	}

	b.server = mcp.NewServer(
		&mcp.Implementation{Name: "relais", Version: "v1.0.0"},
		nil,
	)
	b.registerTools()
	return b
}

// Handler returns the streamable HTTP handler for mounting on a mux.
func (b *Bridge) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return b.server
	}, nil)
}

func (b *Bridge) registerTools() {
	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "list_sources",
		Description: "Lists the available data sources with their descriptions",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		res, err := jsonResult(b.registry.ListBasicInfo())
		return res, struct{}{}, err
	})

	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "describe_source",
		Description: "Returns the markdown capability documentation for one data source",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input describeSourceInput) (*mcp.CallToolResult, struct{}, error) {
		// An unknown name renders a not-found line, same as the HTTP doc
		// endpoint. The tool itself never fails.
		return textResult(b.registry.RenderCapabilityDoc(input.Name)), struct{}{}, nil
	})

	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "list_functions",
		Description: "Lists the callable functions declared by the executor manifest",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		res, err := jsonResult(b.descriptors)
		return res, struct{}{}, err
	})

	mcp.AddTool(b.server, &mcp.Tool{
		Name:        "describe_function",
		Description: "Returns the declaration of one manifest function",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input describeFunctionInput) (*mcp.CallToolResult, struct{}, error) {
		d, ok := b.byName[input.Name]
		if !ok {
			return errorResult(fmt.Sprintf("Function %s not found", input.Name)), struct{}{}, nil
		}
		res, err := jsonResult(d)
		return res, struct{}{}, err
	})
}

// jsonResult encodes v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return textResult(string(data)), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

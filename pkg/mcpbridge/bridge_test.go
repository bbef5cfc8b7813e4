package mcpbridge

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/source"
)

// fakeSource is a minimal Source for bridge tests.
type fakeSource struct {
	info source.Info
	caps []source.Capability
}

func (f *fakeSource) Info() source.Info                 { return f.info }
func (f *fakeSource) Capabilities() []source.Capability { return f.caps }

func testRegistry() *source.Registry {
	reg := source.NewRegistry()
	reg.Initialize(&config.Sources{}, []source.Factory{
		{
			Name:  "metal",
			Class: source.ClassDataSource,
			New: func(*config.Sources) (source.Source, error) {
				return &fakeSource{
					info: source.Info{Name: "metal", DisplayName: "Metal Price", Description: "Gold price index"},
					caps: []source.Capability{{
						Name:    "get_gold_price",
						Summary: "Returns the current gold index",
					}},
				}, nil
			},
		},
	})
	return reg
}

func testDescriptors() []function.Descriptor {
	return []function.Descriptor{
		{Name: "get_stock_price", Kind: function.KindBasic, Parameters: []function.Parameter{{Name: "symbol"}}},
		{Name: "search_tweets", Kind: function.KindMCP},
	}
}

// connect starts the bridge server on an in-memory transport and
// returns a connected client session.
func connect(t *testing.T, b *Bridge) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = b.server.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connecting to bridge: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// callText invokes a bridge tool and returns its concatenated text
// content plus the error flag.
func callText(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("calling %s: %v", name, err)
	}

	var text string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text, result.IsError
}

func TestBridge_ToolDiscovery(t *testing.T) {
	b := New(testRegistry(), testDescriptors())
	session := connect(t, b)

	names := map[string]bool{}
	for tool, err := range session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("listing tools: %v", err)
		}
		names[tool.Name] = true
	}

	for _, want := range []string{"list_sources", "describe_source", "list_functions", "describe_function"} {
		if !names[want] {
			t.Errorf("tool %q not advertised", want)
		}
	}
}

func TestBridge_ListSources(t *testing.T) {
	b := New(testRegistry(), nil)
	session := connect(t, b)

	text, isErr := callText(t, session, "list_sources", nil)
	if isErr {
		t.Fatalf("list_sources returned an error result: %s", text)
	}

	var listing map[string]source.BasicInfo
	if err := json.Unmarshal([]byte(text), &listing); err != nil {
		t.Fatalf("list_sources payload is not JSON: %v", err)
	}
	info, ok := listing["metal"]
	if !ok {
		t.Fatalf("listing is missing metal: %v", listing)
	}
	if info.SourceName != "Metal Price" {
		t.Errorf("SourceName = %q, want %q", info.SourceName, "Metal Price")
	}
}

func TestBridge_DescribeSource(t *testing.T) {
	b := New(testRegistry(), nil)
	session := connect(t, b)

	text, isErr := callText(t, session, "describe_source", map[string]any{"name": "metal"})
	if isErr {
		t.Fatalf("describe_source returned an error result: %s", text)
	}
	if !strings.Contains(text, "## Metal Price") {
		t.Errorf("doc is missing the source heading:\n%s", text)
	}
	if !strings.Contains(text, "### get_gold_price") {
		t.Errorf("doc is missing the capability heading:\n%s", text)
	}
}

func TestBridge_DescribeSource_Unknown(t *testing.T) {
	b := New(testRegistry(), nil)
	session := connect(t, b)

	text, isErr := callText(t, session, "describe_source", map[string]any{"name": "nope"})
	if isErr {
		t.Fatal("unknown source should still yield a plain text result")
	}
	if !strings.Contains(text, "does not exist") {
		t.Errorf("expected a not-found line, got:\n%s", text)
	}
}

func TestBridge_ListFunctions(t *testing.T) {
	b := New(testRegistry(), testDescriptors())
	session := connect(t, b)

	text, isErr := callText(t, session, "list_functions", nil)
	if isErr {
		t.Fatalf("list_functions returned an error result: %s", text)
	}

	var listed []function.Descriptor
	if err := json.Unmarshal([]byte(text), &listed); err != nil {
		t.Fatalf("list_functions payload is not JSON: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("listed %d functions, want 2", len(listed))
	}
	if listed[0].Name != "get_stock_price" || listed[1].Name != "search_tweets" {
		t.Errorf("manifest order not preserved: %v", listed)
	}
}

func TestBridge_DescribeFunction(t *testing.T) {
	b := New(testRegistry(), testDescriptors())
	session := connect(t, b)

	text, isErr := callText(t, session, "describe_function", map[string]any{"name": "get_stock_price"})
	if isErr {
		t.Fatalf("describe_function returned an error result: %s", text)
	}

	var d function.Descriptor
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		t.Fatalf("describe_function payload is not JSON: %v", err)
	}
	if d.Kind != function.KindBasic {
		t.Errorf("Kind = %q, want %q", d.Kind, function.KindBasic)
	}
	if len(d.Parameters) != 1 || d.Parameters[0].Name != "symbol" {
		t.Errorf("Parameters = %v, want [symbol]", d.Parameters)
	}
}

func TestBridge_DescribeFunction_Unknown(t *testing.T) {
	b := New(testRegistry(), testDescriptors())
	session := connect(t, b)

	text, isErr := callText(t, session, "describe_function", map[string]any{"name": "bogus"})
	if !isErr {
		t.Fatal("unknown function should produce an error result")
	}
	if text != "Function bogus not found" {
		t.Errorf("message = %q, want %q", text, "Function bogus not found")
	}
}

func TestBridge_DuplicateFunctionName_LastWins(t *testing.T) {
	descriptors := []function.Descriptor{
		{Name: "lookup", Kind: function.KindBasic},
		{Name: "lookup", Kind: function.KindMCP},
	}
	b := New(testRegistry(), descriptors)
	session := connect(t, b)

	text, isErr := callText(t, session, "describe_function", map[string]any{"name": "lookup"})
	if isErr {
		t.Fatalf("describe_function returned an error result: %s", text)
	}

	var d function.Descriptor
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		t.Fatalf("describe_function payload is not JSON: %v", err)
	}
	if d.Kind != function.KindMCP {
		t.Errorf("Kind = %q, want later entry %q", d.Kind, function.KindMCP)
	}
}

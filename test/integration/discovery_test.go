package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/relais/pkg/function"
)

func TestListSources(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/sources")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var sources map[string]struct {
		SourceName  string `json:"source_name"`
		Description string `json:"description"`
	}
	decodeJSON(t, resp, &sources)

	if len(sources) == 0 {
		t.Fatal("no sources listed")
	}

	metal, ok := sources["metal"]
	if !ok {
		t.Fatalf("metal source missing from listing, got %d sources", len(sources))
	}
	if metal.SourceName == "" || metal.Description == "" {
		t.Errorf("metal info incomplete: %+v", metal)
	}
}

func TestSourceCapabilityDoc(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/sources/metal/doc")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}

	body := readBody(t, resp)
	if !strings.Contains(body, "# Available data sources") {
		t.Errorf("doc missing header:\n%s", body)
	}
	if !strings.Contains(body, "## Metal Price") {
		t.Errorf("doc missing source section:\n%s", body)
	}
	if !strings.Contains(body, "### get_metal_price") {
		t.Errorf("doc missing operation section:\n%s", body)
	}
}

func TestSourceDocUnknownSource(t *testing.T) {
	// The doc endpoint always renders; an unknown name produces the
	// does-not-exist document rather than a 404.
	resp := getURL(t, testEnv.BaseURL()+"/v1/sources/nonexistent/doc")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := readBody(t, resp)
	if !strings.Contains(body, "does not exist") {
		t.Errorf("body = %q, want does-not-exist document", body)
	}
}

func TestListFunctions(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/functions")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var listing struct {
		Data []function.Descriptor `json:"data"`
	}
	decodeJSON(t, resp, &listing)

	if len(listing.Data) != 4 {
		t.Fatalf("got %d functions, want 4", len(listing.Data))
	}

	byName := make(map[string]function.Descriptor, len(listing.Data))
	for _, d := range listing.Data {
		byName[d.Name] = d
	}

	stock, ok := byName["get_stock_price"]
	if !ok {
		t.Fatal("get_stock_price missing from listing")
	}
	if stock.Kind != function.KindBasic {
		t.Errorf("get_stock_price kind = %q, want %q", stock.Kind, function.KindBasic)
	}
	if len(stock.Parameters) != 1 || stock.Parameters[0].Name != "symbol" {
		t.Errorf("get_stock_price parameters = %+v, want one 'symbol'", stock.Parameters)
	}

	if agent, ok := byName["dispatch_helper"]; !ok {
		t.Error("dispatch_helper missing from listing")
	} else if agent.Kind != function.KindAgent {
		t.Errorf("dispatch_helper kind = %q, want %q", agent.Kind, function.KindAgent)
	}
}

func TestFunctionDocs(t *testing.T) {
	resp := getURL(t, testEnv.BaseURL()+"/v1/functions/docs")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Content-Type = %q, want text/markdown", ct)
	}

	if body := readBody(t, resp); body == "" {
		t.Error("function docs are empty")
	}
}

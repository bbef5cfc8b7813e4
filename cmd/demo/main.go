// Command demo walks the full function-call loop in a single process:
// it registers the builtin data sources, renders the capability doc an
// orchestrator would read before calling, loads a function manifest,
// and invokes functions against an in-process executor, finishing with
// the task_done completion sentinel on stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/function"
	"github.com/rhuss/relais/pkg/source"
	"github.com/rhuss/relais/pkg/source/builtins"
)

const sampleManifest = `[
  {
    "name": "get_stock_price",
    "description": "Latest trading price for a ticker symbol.",
    "parameters": [
      {"name": "symbol", "type": "string", "description": "Ticker symbol, e.g. AAPL", "required": true}
    ]
  },
  {
    "name": "task_done",
    "description": "Signals that the task is finished and carries the final answer.",
    "parameters": [
      {"name": "message", "type": "string", "description": "Final answer text", "required": true}
    ]
  }
]`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "demo failed:", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== relais function loop demo ===")
	fmt.Println()

	// Registry chatter would drown the walkthrough.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	// 1. Register the builtin data sources
	reg := source.NewRegistry()
	reg.Initialize(&config.Sources{}, builtins.All())

	info := reg.ListBasicInfo()
	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("[1] %d data sources registered:\n", len(names))
	for _, name := range names {
		fmt.Printf("    %-14s %s\n", name, info[name].SourceName)
	}

	// 2. The capability doc an orchestrator reads before calling
	doc := reg.RenderCapabilityDoc("metal")
	fmt.Printf("\n[2] Capability doc for metal (first lines):\n%s\n", indent(firstLines(doc, 8)))

	// 3. Start an in-process executor and load a manifest against it
	endpoint, stop, err := startExecutor()
	if err != nil {
		return err
	}
	defer stop()
	fmt.Printf("\n[3] In-process executor listening on %s\n", endpoint)

	path := filepath.Join(os.TempDir(), "relais-demo-manifest.json")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	defer os.Remove(path)

	descriptors, proxies, err := function.Load(path,
		function.WithEndpoint(endpoint),
		function.WithCaller("demo"),
		function.WithTimeout(10*time.Second),
	)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	fmt.Printf("\n[4] Manifest loaded, %d functions:\n", len(descriptors))
	for _, d := range descriptors {
		fmt.Printf("    %-16s kind=%-6s params=%d\n", d.Name, d.Kind, len(d.Parameters))
	}

	// 4. Positional invocation: arguments map onto declared parameters
	ctx := context.Background()
	res := proxies["get_stock_price"].Invoke(ctx, "AAPL")
	printResult("[5] get_stock_price(\"AAPL\")", res)

	// 5. Named invocation of the same function
	res = proxies["get_stock_price"].InvokeNamed(ctx, map[string]any{"symbol": "MSFT"})
	printResult("[6] get_stock_price(symbol=MSFT)", res)

	// 6. Completion: the proxy echoes the sentinel line to stdout so a
	// supervising process can scrape the final result
	fmt.Println("\n[7] task_done, the sentinel line follows:")
	res = proxies["task_done"].Invoke(ctx, "The current price of AAPL is $217.51")
	printResult("    result", res)

	fmt.Println("\n=== demo complete ===")
	return nil
}

// startExecutor serves a minimal executor on a loopback port. It
// answers every well-formed call with a canned success result.
func startExecutor() (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("starting executor: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		var req api.CallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		msg := fmt.Sprintf("%s executed", req.FunctionName)
		switch req.FunctionName {
		case "get_stock_price":
			msg = fmt.Sprintf("The current price of %v is $217.51", req.Parameters["symbol"])
		case "task_done":
			msg = fmt.Sprintf("%v", req.Parameters["message"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.CallResult{Message: msg})
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)

	stop := func() { srv.Close() }
	return "http://" + ln.Addr().String(), stop, nil
}

func printResult(label string, res api.ToolResult) {
	status := "ok"
	if res.IsError {
		status = "ERROR"
	}
	fmt.Printf("\n%s:\n    status:  %s\n    message: %q\n", label, status, res.Message)
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n..."
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}

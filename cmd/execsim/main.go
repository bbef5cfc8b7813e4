// Command execsim runs a deterministic executor on the proxy wire
// contract, for development and integration testing. It answers every
// /execute with a predictable result, enforces request-ID uniqueness,
// and keeps a ledger of what it ran.
//
// Configuration:
//
//	EXECSIM_PORT   - Listen port (default: 12306)
//	EXECSIM_SCRIPT - Optional YAML behavior script (see below)
//
// A behavior script maps function names to canned outcomes:
//
//	functions:
//	  get_stock_price:
//	    message: "AAPL: 123.45"
//	  flaky_search:
//	    is_error: true
//	    message: "upstream unavailable"
//	  slow_report:
//	    delay: 2s
//	    message: "report ready"
//
// Functions not in the script fall back to builtins: "sleep" waits for
// parameters.seconds, "fail" always errors, everything else echoes the
// function name and parameter count.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/relais/pkg/api"
	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/storage"
	"github.com/rhuss/relais/pkg/storage/memory"
)

func main() {
	port := os.Getenv("EXECSIM_PORT")
	if port == "" {
		port = "12306"
	}

	var behaviors map[string]behavior
	if path := os.Getenv("EXECSIM_SCRIPT"); path != "" {
		var err error
		behaviors, err = loadScript(path)
		if err != nil {
			slog.Error("loading behavior script", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("behavior script loaded", "path", path, "functions", len(behaviors))
	}

	sim := &simulator{
		store:     memory.New(0),
		behaviors: behaviors,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", sim.handleExecute)
	mux.HandleFunc("GET /calls", sim.handleCalls)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("execsim starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("execsim failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("execsim shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Behavior script ---

type script struct {
	Functions map[string]behavior `yaml:"functions"`
}

type behavior struct {
	Message string          `yaml:"message"`
	IsError bool            `yaml:"is_error"`
	Delay   config.Duration `yaml:"delay"`
}

func loadScript(path string) (map[string]behavior, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	return s.Functions, nil
}

// --- Simulator ---

type simulator struct {
	store     storage.CallStore
	behaviors map[string]behavior
}

func (s *simulator) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req api.CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, api.CallResult{
			IsError: true,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		writeResult(w, http.StatusBadRequest, api.CallResult{
			IsError: true,
			Message: err.Error(),
		})
		return
	}

	// A request ID seen before is replayed traffic, never re-executed.
	if _, err := s.store.GetByRequestID(r.Context(), req.RequestID); err == nil {
		writeResult(w, http.StatusConflict, api.CallResult{
			IsError: true,
			Message: fmt.Sprintf("duplicate request_id %s", req.RequestID),
		})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeResult(w, http.StatusInternalServerError, api.CallResult{
			IsError: true,
			Message: err.Error(),
		})
		return
	}

	start := time.Now()
	b := s.resolve(&req)

	if d := b.Delay.Std(); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	rec := &storage.CallRecord{
		ID:           api.NewCallID(),
		RequestID:    req.RequestID,
		FunctionName: req.FunctionName,
		FunctionKind: req.FunctionKind,
		CallerName:   req.CallerName,
		Parameters:   req.Parameters,
		Message:      b.Message,
		IsError:      b.IsError,
		DurationMS:   time.Since(start).Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Record(r.Context(), rec); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			writeResult(w, http.StatusConflict, api.CallResult{
				IsError: true,
				Message: fmt.Sprintf("duplicate request_id %s", req.RequestID),
			})
			return
		}
		writeResult(w, http.StatusInternalServerError, api.CallResult{
			IsError: true,
			Message: err.Error(),
		})
		return
	}

	slog.Info("executed",
		"function", req.FunctionName,
		"caller", req.CallerName,
		"request_id", req.RequestID,
		"is_error", b.IsError,
	)
	writeResult(w, http.StatusOK, api.CallResult{IsError: b.IsError, Message: b.Message})
}

// resolve picks the outcome for one request: script entry first, then
// builtins, then the echo default.
func (s *simulator) resolve(req *api.CallRequest) behavior {
	if b, ok := s.behaviors[req.FunctionName]; ok {
		return b
	}

	switch req.FunctionName {
	case "sleep":
		seconds, _ := req.Parameters["seconds"].(float64)
		return behavior{
			Message: fmt.Sprintf("slept for %gs", seconds),
			Delay:   config.Duration(time.Duration(seconds * float64(time.Second))),
		}
	case "fail":
		return behavior{IsError: true, Message: "fail always fails"}
	}

	return behavior{
		Message: fmt.Sprintf("%s executed with %d parameters", req.FunctionName, len(req.Parameters)),
	}
}

func (s *simulator) handleCalls(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{Function: r.URL.Query().Get("function")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			opts.Limit = limit
		}
	}

	records, err := s.store.List(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Data []*storage.CallRecord `json:"data"`
	}{Data: records})
}

func writeResult(w http.ResponseWriter, status int, result api.CallResult) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(result)
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/debug"
	"github.com/rhuss/relais/pkg/observability"
)

// ProxyClient issues vendor API calls through the shared external API
// proxy. The proxy routes by the X-Original-Host header, so callers
// address vendor endpoints by path alone. One client serves one
// vendor host; sources hold their client for their lifetime.
type ProxyClient struct {
	source  string
	host    string
	baseURL string
	bizID   string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewProxyClient builds a client for one vendor host. sourceName
// labels metrics and log lines; host is sent as X-Original-Host.
func NewProxyClient(cfg *config.Sources, sourceName, host string) *ProxyClient {
	timeout := cfg.RequestTimeout.Std()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ProxyClient{
		source:  sourceName,
		host:    host,
		baseURL: strings.TrimSuffix(cfg.ProxyBaseURL, "/"),
		bizID:   cfg.BizID,
		timeout: timeout,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		logger: slog.Default().With("source", sourceName),
	}
}

// Get performs a GET against the vendor path with query parameters.
// op names the calling operation for metrics and logs.
func (c *ProxyClient) Get(ctx context.Context, op, path string, query url.Values) (map[string]any, error) {
	return c.do(ctx, op, http.MethodGet, path, query, nil)
}

// Post performs a POST with an optional JSON payload. A nil payload
// sends an empty body; pass an empty map to send a literal "{}".
func (c *ProxyClient) Post(ctx context.Context, op, path string, query url.Values, payload any) (map[string]any, error) {
	return c.do(ctx, op, http.MethodPost, path, query, payload)
}

func (c *ProxyClient) do(ctx context.Context, op, method, path string, query url.Values, payload any) (map[string]any, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	debug.Log("sources", "vendor request", "source", c.source, "operation", op, "method", method, "url", u)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Original-Host", c.host)
	req.Header.Set("X-Biz-Id", c.bizID)
	req.Header.Set("X-Request-Timeout", strconv.Itoa(int(c.timeout.Seconds())-5))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if isVendorTimeout(err) {
			c.observe(op, start, "timeout")
			return nil, c.fail(op, fmt.Errorf("Request timeout (timeout=%ds)", int(c.timeout.Seconds())))
		}
		c.observe(op, start, "error")
		return nil, c.fail(op, fmt.Errorf("HTTP request error: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(op, start, "error")
		return nil, c.fail(op, fmt.Errorf("HTTP request error: %v", err))
	}
	debug.Raw("sources", string(raw))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(op, start, "error")
		return nil, c.fail(op, fmt.Errorf("HTTP request error: unexpected status %d", resp.StatusCode))
	}

	data, err := decodeVendorJSON(raw)
	if err != nil {
		c.observe(op, start, "error")
		return nil, c.fail(op, err)
	}
	c.observe(op, start, "ok")
	return data, nil
}

func (c *ProxyClient) observe(op string, start time.Time, status string) {
	observability.SourceRequestsTotal.WithLabelValues(c.source, op, status).Inc()
	observability.SourceRequestDuration.WithLabelValues(c.source, op).Observe(time.Since(start).Seconds())
}

func (c *ProxyClient) fail(op string, err error) error {
	c.logger.Warn("vendor request failed", "operation", op, "error", err)
	return err
}

// decodeVendorJSON handles the proxy's habit of double-encoding some
// responses: a JSON string whose content is the actual document gets
// unwrapped one level. Anything that does not end up as an object is
// rejected.
func decodeVendorJSON(raw []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("Invalid API response format: %s", raw)
	}
	if s, ok := v.(string); ok {
		var inner any
		if err := json.Unmarshal([]byte(s), &inner); err == nil {
			v = inner
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Invalid API response format: %v", v)
	}
	return m, nil
}

func isVendorTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Items coerces a decoded JSON array into a list of objects. Entries
// that are not objects are dropped, as is anything that is not an
// array at all.
func Items(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

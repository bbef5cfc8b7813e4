package function

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// LoadManifest reads an executor function manifest, a JSON array of
// descriptor objects. Entries that are not objects or lack a non-empty
// name are skipped with a warning; only an unreadable or malformed file
// aborts the load.
func LoadManifest(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	descriptors := make([]Descriptor, 0, len(entries))
	skipped := 0
	for i, entry := range entries {
		var d Descriptor
		if err := json.Unmarshal(entry, &d); err != nil {
			slog.Warn("skipping malformed manifest entry", "index", i, "error", err)
			skipped++
			continue
		}
		if d.Name == "" {
			slog.Warn("skipping manifest entry without name", "index", i)
			skipped++
			continue
		}
		if d.Kind == "" {
			d.Kind = KindBasic
		}
		descriptors = append(descriptors, d)
	}

	if skipped > 0 {
		slog.Debug("manifest entries dropped", "path", path, "count", skipped)
	}

	return descriptors, nil
}

// Load reads a manifest and builds one proxy per named entry, all
// sharing the given options. When two entries declare the same name,
// the later one wins. The descriptor slice preserves manifest order.
func Load(path string, opts ...Option) ([]Descriptor, map[string]*Proxy, error) {
	descriptors, err := LoadManifest(path)
	if err != nil {
		return nil, nil, err
	}

	proxies := make(map[string]*Proxy, len(descriptors))
	for _, d := range descriptors {
		proxies[d.Name] = New(d, opts...)
	}

	return descriptors, proxies, nil
}

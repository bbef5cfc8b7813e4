package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PageFunc fetches one page of results. Pages are numbered from 1;
// size is the number of items wanted from that page, which shrinks on
// the final page when the total is not a multiple of the page size.
type PageFunc func(ctx context.Context, page, size int) ([]map[string]any, error)

// FetchPages gathers total items in pages of at most pageSize,
// issuing every page request concurrently and joining them all before
// returning. Results keep page order. A failed page is logged and
// excluded; FetchPages fails only when no page succeeds.
func FetchPages(ctx context.Context, total, pageSize int, fetch PageFunc) ([]map[string]any, error) {
	if total <= 0 {
		return nil, fmt.Errorf("total must be positive, got %d", total)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if pageSize > total {
		pageSize = total
	}
	numPages := (total + pageSize - 1) / pageSize

	type page struct {
		items []map[string]any
		err   error
	}
	pages := make([]page, numPages)

	var wg sync.WaitGroup
	for i := 0; i < numPages; i++ {
		size := pageSize
		if i == numPages-1 {
			size = total - pageSize*(numPages-1)
		}
		wg.Add(1)
		go func(idx, size int) {
			defer wg.Done()
			items, err := fetch(ctx, idx+1, size)
			pages[idx] = page{items: items, err: err}
		}(i, size)
	}
	wg.Wait()

	var (
		out     []map[string]any
		failed  int
		lastErr error
	)
	for i, p := range pages {
		if p.err != nil {
			slog.Warn("page fetch failed", "page", i+1, "error", p.err)
			failed++
			lastErr = p.err
			continue
		}
		out = append(out, p.items...)
	}
	if failed == numPages {
		return nil, fmt.Errorf("all %d pages failed: %w", numPages, lastErr)
	}
	if len(out) > total {
		out = out[:total]
	}
	return out, nil
}

// Package patent searches Google Patents through the vendor proxy.
//
// Large result counts are split into concurrent page requests and the
// pages merged in order, so a single call can return up to 500 patents.
package patent

import (
	"context"
	"strings"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

const (
	maxResults  = 500
	maxPageSize = 50
	maxKeywords = 5
)

// Query bundles the patent search filters. Zero values are omitted
// from the vendor request.
type Query struct {
	Query      string // search keywords, capped at five
	Assignee   string // e.g. "Apple Inc."
	NumResults int    // default 10, capped at 500
	StartTime  string // publication lower bound, YYYYMMDD
	EndTime    string // publication upper bound, YYYYMMDD
}

// Source exposes patent search.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the patent source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "patent",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "patent", cfg.Hosts.Serper)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "patent",
		DisplayName: "Patent Search",
		Description: "Patent search, works like google patents",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_patents",
			Summary: "Search for patents by keyword, assignee and publication date range.",
			Parameters: []source.ParamDoc{
				{Name: "query", Type: "string", Doc: "search keywords, up to 5"},
				{Name: "assignee", Type: "string", Doc: `patent assignee, e.g. "Apple Inc.", optional`},
				{Name: "num_results", Type: "int", Doc: "number of results to return, default 10, max 500"},
				{Name: "start_time", Type: "string", Doc: "publication start date YYYYMMDD, optional"},
				{Name: "end_time", Type: "string", Doc: "publication end date YYYYMMDD, optional"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "patents": [
      {
        "title": "...",
        "snippet": "...",
        "link": "...",
        "priorityDate": "...",
        "filingDate": "...",
        "grantDate": "...",
        "inventor": "...",
        "assignee": "...",
        "publicationNumber": "...",
        "pdfUrl": "..."
      }
    ]
  }
}`,
			},
			Example: `result := patentSource.Search(ctx, patent.Query{
	Query:      "machine learning",
	Assignee:   "Apple Inc.",
	NumResults: 100,
	StartTime:  "20200101",
	EndTime:    "20231231",
})
if result["success"] != true {
	log.Printf("patent search failed: %v", result["error"])
}`,
		},
	}
}

// Search runs a patent search, fanning out one request per result
// page. Pages that fail are logged and skipped as long as at least one
// page succeeds.
func (s *Source) Search(ctx context.Context, q Query) map[string]any {
	if words := strings.Fields(q.Query); len(words) > maxKeywords {
		q.Query = strings.Join(words[:maxKeywords], " ")
	}
	total := q.NumResults
	if total <= 0 {
		total = 10
	}
	if total > maxResults {
		total = maxResults
	}
	patents, err := source.FetchPages(ctx, total, maxPageSize, func(ctx context.Context, page, size int) ([]map[string]any, error) {
		return s.fetchPage(ctx, q, page, size)
	})
	if err != nil {
		return source.Failure(err)
	}
	return source.Success(map[string]any{"patents": patents})
}

func (s *Source) fetchPage(ctx context.Context, q Query, page, size int) ([]map[string]any, error) {
	payload := map[string]any{"q": q.Query, "num": size, "page": page}
	if q.Assignee != "" {
		payload["assignee"] = q.Assignee
	}
	if q.StartTime != "" {
		payload["after"] = "publication:" + q.StartTime
	}
	if q.EndTime != "" {
		payload["before"] = "publication:" + q.EndTime
	}
	data, err := s.client.Post(ctx, "search_patents", "/patents", nil, payload)
	if err != nil {
		return nil, err
	}
	items := source.Items(data["organic"])
	patents := make([]map[string]any, 0, len(items))
	for _, item := range items {
		patents = append(patents, map[string]any{
			"title":             item["title"],
			"snippet":           item["snippet"],
			"link":              item["link"],
			"priorityDate":      item["priorityDate"],
			"filingDate":        item["filingDate"],
			"grantDate":         item["grantDate"],
			"inventor":          item["inventor"],
			"assignee":          item["assignee"],
			"publicationNumber": item["publicationNumber"],
			"pdfUrl":            item["pdfUrl"],
		})
	}
	return patents, nil
}

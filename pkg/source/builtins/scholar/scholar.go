// Package scholar searches academic papers through the vendor proxy,
// fanning out page requests the same way the patent source does.
package scholar

import (
	"context"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

const (
	maxResults  = 500
	maxPageSize = 20 // vendor page limit
)

// Query bundles the paper search filters. Zero values are omitted from
// the vendor request.
type Query struct {
	Query      string // search keywords
	NumResults int    // default 10, capped at 500
	StartYear  string // publication lower bound, YYYY
	EndYear    string // publication upper bound, YYYY
}

// Source exposes scholarly paper search.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the scholar source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "scholar",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "scholar", cfg.Hosts.Serper)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "scholar",
		DisplayName: "Scholar Search",
		Description: "Scholar paper search, works like google scholar",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_scholar",
			Summary: "Search for academic papers by keyword and publication year range.",
			Parameters: []source.ParamDoc{
				{Name: "query", Type: "string", Doc: "search keywords"},
				{Name: "num_results", Type: "int", Doc: "number of results to return, default 10, max 500"},
				{Name: "start_year", Type: "string", Doc: "start year YYYY, optional"},
				{Name: "end_year", Type: "string", Doc: "end year YYYY, optional"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "papers": [
      {
        "title": "...",
        "snippet": "...",
        "link": "...",
        "publicationInfo": "...",
        "year": "...",
        "citedBy": "...",
        "pdfUrl": "..."
      }
    ]
  }
}`,
			},
			Example: `result := scholarSource.Search(ctx, scholar.Query{
	Query:      "machine learning",
	NumResults: 100,
	StartYear:  "2020",
	EndYear:    "2023",
})
if result["success"] != true {
	log.Printf("scholar search failed: %v", result["error"])
}`,
		},
	}
}

// Search runs a paper search, fanning out one request per result page.
// Pages that fail are logged and skipped as long as at least one page
// succeeds.
func (s *Source) Search(ctx context.Context, q Query) map[string]any {
	total := q.NumResults
	if total <= 0 {
		total = 10
	}
	if total > maxResults {
		total = maxResults
	}
	papers, err := source.FetchPages(ctx, total, maxPageSize, func(ctx context.Context, page, size int) ([]map[string]any, error) {
		return s.fetchPage(ctx, q, page, size)
	})
	if err != nil {
		return source.Failure(err)
	}
	return source.Success(map[string]any{"papers": papers})
}

func (s *Source) fetchPage(ctx context.Context, q Query, page, size int) ([]map[string]any, error) {
	payload := map[string]any{"q": q.Query, "page": page, "num": size}
	if q.StartYear != "" {
		payload["as_ylo"] = "publication:" + q.StartYear
	}
	if q.EndYear != "" {
		payload["as_yhi"] = "publication:" + q.EndYear
	}
	data, err := s.client.Post(ctx, "search_scholar", "/scholar", nil, payload)
	if err != nil {
		return nil, err
	}
	items := source.Items(data["organic"])
	papers := make([]map[string]any, 0, len(items))
	for _, item := range items {
		papers = append(papers, map[string]any{
			"title":           item["title"],
			"snippet":         item["snippet"],
			"link":            item["link"],
			"publicationInfo": item["publicationInfo"],
			"year":            item["year"],
			"citedBy":         item["citedBy"],
			"pdfUrl":          item["pdfUrl"],
		})
	}
	return papers, nil
}

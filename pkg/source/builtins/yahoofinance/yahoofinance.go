// Package yahoofinance serves stock chart and news data through the
// vendor proxy.
package yahoofinance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// Source exposes historical stock prices and related news.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the Yahoo Finance
// source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "yahoo_finance",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "yahoo_finance", cfg.Hosts.Yahoo)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "yahoo_finance",
		DisplayName: "Yahoo Finance",
		Description: "Yahoo Finance data source, providing stock price and company information query and stock related news query",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "get_stock_price",
			Summary: "Get daily price rows for a stock over a date range.",
			Parameters: []source.ParamDoc{
				{Name: "symbol", Type: "string", Doc: "stock code"},
				{Name: "start_date", Type: "string", Doc: "start date in YYYY-MM-DD format"},
				{Name: "end_date", Type: "string", Doc: "end date in YYYY-MM-DD format"},
				{Name: "interval", Type: "string", Doc: "time interval, options: 1m|2m|5m|15m|30m|60m|1d|1wk|1mo, default: 1d"},
				{Name: "events", Type: "string", Doc: "event type, options: capitalGain|div|split|earn|history, default: empty"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "symbol": "AAPL",
    "prices": [
      {
        "date": "2024-01-01",
        "open": 182.15,
        "high": 185.10,
        "low": 181.80,
        "close": 184.25,
        "volume": 32456789
      }
    ]
  }
}`,
			},
			Example: `result := yahooSource.StockPrice(ctx, "AAPL", "2024-01-01", "2024-02-01", "1d", "")
if result["success"] != true {
	log.Printf("price lookup failed: %v", result["error"])
}`,
		},
		{
			Name:    "get_stock_news",
			Summary: "Get recent news articles related to a stock.",
			Parameters: []source.ParamDoc{
				{Name: "symbol", Type: "string", Doc: "stock code"},
				{Name: "region", Type: "string", Doc: "region code, default: US"},
				{Name: "snippet_count", Type: "int", Doc: "number of news items to return, default: 10"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "symbol": "AAPL",
    "simple_news": [
      {
        "title": "...",
        "publisher": "...",
        "publish_date": "...",
        "link": "...",
        "uuid": "...",
        "content_type": "...",
        "thumbnail": "...",
        "tickers": ["AAPL", "MSFT"]
      }
    ]
  }
}`,
			},
			Example: `result := yahooSource.StockNews(ctx, "AAPL", "US", 10)
if result["success"] != true {
	log.Printf("news lookup failed: %v", result["error"])
}`,
		},
	}
}

// StockPrice fetches chart rows for symbol between startDate and
// endDate (both YYYY-MM-DD). An empty interval means daily.
func (s *Source) StockPrice(ctx context.Context, symbol, startDate, endDate, interval, events string) map[string]any {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return source.Failure(fmt.Errorf("invalid start_date: %v", err))
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return source.Failure(fmt.Errorf("invalid end_date: %v", err))
	}
	if start.After(end) {
		return source.Failure(errors.New("start_date cannot be greater than end_date"))
	}
	if interval == "" {
		interval = "1d"
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("period1", strconv.FormatInt(start.Unix(), 10))
	query.Set("period2", strconv.FormatInt(end.Unix(), 10))
	query.Set("interval", interval)
	query.Set("region", "US")
	query.Set("includePrePost", "false")
	query.Set("useYfid", "true")
	query.Set("includeAdjustedClose", "true")
	if events != "" {
		query.Set("events", events)
	}

	data, err := s.client.Get(ctx, "get_stock_price", "/stock/v3/get-chart", query)
	if err != nil {
		return source.Failure(err)
	}
	chart, _ := data["chart"].(map[string]any)
	if chart == nil {
		return source.Failure(fmt.Errorf("Invalid API response format: %v", data))
	}
	if chartErr := chart["error"]; chartErr != nil {
		return source.Failure(fmt.Errorf("%v", chartErr))
	}
	results := source.Items(chart["result"])
	if len(results) == 0 {
		return source.Failure(fmt.Errorf("Invalid API response format: %v", data))
	}
	return source.Success(map[string]any{
		"symbol": symbol,
		"prices": priceRows(results[0]),
	})
}

// StockNews fetches recent articles mentioning symbol, flattened to
// the fields planners actually read.
func (s *Source) StockNews(ctx context.Context, symbol, region string, snippetCount int) map[string]any {
	if region == "" {
		region = "US"
	}
	if snippetCount <= 0 {
		snippetCount = 10
	}

	query := url.Values{}
	query.Set("region", region)
	query.Set("snippetCount", strconv.Itoa(snippetCount))
	query.Set("s", symbol)

	// The vendor wants POST with an empty body here.
	data, err := s.client.Post(ctx, "get_stock_news", "/news/v2/list", query, nil)
	if err != nil {
		return source.Failure(err)
	}

	var stream any
	if d, ok := data["data"].(map[string]any); ok {
		if m, ok := d["main"].(map[string]any); ok {
			stream = m["stream"]
		}
	}
	items := source.Items(stream)
	news := make([]map[string]any, 0, len(items))
	for _, item := range items {
		content, ok := item["content"].(map[string]any)
		if !ok || len(content) == 0 {
			continue
		}
		news = append(news, map[string]any{
			"title":        content["title"],
			"publisher":    nestedString(content, "provider", "displayName"),
			"publish_date": content["pubDate"],
			"link":         nestedString(content, "clickThroughUrl", "url"),
			"uuid":         content["id"],
			"content_type": content["contentType"],
			"thumbnail":    thumbnailURL(content["thumbnail"]),
			"tickers":      stockTickers(content["finance"]),
		})
	}
	return source.Success(map[string]any{"symbol": symbol, "simple_news": news})
}

// priceRows zips the chart's parallel timestamp and quote arrays into
// one row per trading day.
func priceRows(result map[string]any) []map[string]any {
	timestamps, _ := result["timestamp"].([]any)
	var quote map[string]any
	if ind, ok := result["indicators"].(map[string]any); ok {
		if rows := source.Items(ind["quote"]); len(rows) > 0 {
			quote = rows[0]
		}
	}
	open, _ := quote["open"].([]any)
	high, _ := quote["high"].([]any)
	low, _ := quote["low"].([]any)
	closes, _ := quote["close"].([]any)
	volume, _ := quote["volume"].([]any)

	rows := make([]map[string]any, 0, len(timestamps))
	for i, ts := range timestamps {
		sec, ok := ts.(float64)
		if !ok {
			continue
		}
		row := map[string]any{
			"date":  time.Unix(int64(sec), 0).Format("2006-01-02"),
			"open":  at(open, i),
			"high":  at(high, i),
			"low":   at(low, i),
			"close": at(closes, i),
		}
		if v, ok := at(volume, i).(float64); ok {
			row["volume"] = int64(v)
		} else {
			row["volume"] = at(volume, i)
		}
		rows = append(rows, row)
	}
	return rows
}

func at(list []any, i int) any {
	if i < len(list) {
		return list[i]
	}
	return nil
}

func nestedString(m map[string]any, outer, inner string) string {
	if o, ok := m[outer].(map[string]any); ok {
		s, _ := o[inner].(string)
		return s
	}
	return ""
}

// thumbnailURL prefers the original resolution, falling back to the
// first one the vendor lists.
func thumbnailURL(v any) string {
	thumb, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	resolutions := source.Items(thumb["resolutions"])
	for _, res := range resolutions {
		if tag, _ := res["tag"].(string); tag == "original" {
			if u, _ := res["url"].(string); u != "" {
				return u
			}
		}
	}
	if len(resolutions) > 0 {
		if u, _ := resolutions[0]["url"].(string); u != "" {
			return u
		}
	}
	return ""
}

func stockTickers(v any) []string {
	finance, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var tickers []string
	for _, t := range source.Items(finance["stockTickers"]) {
		if sym, _ := t["symbol"].(string); sym != "" {
			tickers = append(tickers, sym)
		}
	}
	return tickers
}

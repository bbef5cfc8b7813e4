// Package metal serves live precious metal quotes through the vendor
// proxy.
package metal

import (
	"context"
	"net/url"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// Source exposes spot prices for gold, silver, platinum, palladium and
// rhodium.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the metal source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "metal",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "metal", cfg.Hosts.Metal)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "metal",
		DisplayName: "Metal Price",
		Description: "Metal price data source, provides price information for metals such as Gold, Silver, Platinum, Palladium, Rhodium.",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "get_metal_price",
			Summary: "Get the latest price quotes for all tracked metals.",
			Parameters: []source.ParamDoc{
				{Name: "currency_code", Type: "string", Doc: `currency the quotes are denominated in, e.g. "USD"`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "base_currency": "USD",
    "quotes": {
      "gold": {
        "currency": "USD",
        "name": "Gold",
        "bid": 3318.29,
        "mid": 3319.29,
        "high": 3373.6,
        "low": 3264.2,
        "originalTime": "2025-04-25 17:00:00",
        "unit": "OUNCE"
      }
    }
  }
}`,
			},
			Example: `result := metalSource.Price(ctx, "USD")
if result["success"] != true {
	log.Printf("metal lookup failed: %v", result["error"])
}`,
		},
	}
}

// Price fetches current quotes for every tracked metal, denominated in
// currencyCode. Each metal keeps only the first result row the vendor
// reports.
func (s *Source) Price(ctx context.Context, currencyCode string) map[string]any {
	query := url.Values{}
	query.Set("currency", currencyCode)
	data, err := s.client.Post(ctx, "get_metal_price", "/web-crawling/api/gold-index", query, map[string]any{})
	if err != nil {
		return source.Failure(err)
	}
	quotes := map[string]any{}
	if raw, ok := data["data"].(map[string]any); ok {
		for metal, v := range raw {
			info, ok := v.(map[string]any)
			if !ok {
				continue
			}
			quote := map[string]any{
				"currency": info["currency"],
				"name":     info["name"],
			}
			if rows := source.Items(info["results"]); len(rows) > 0 {
				row := rows[0]
				quote["bid"] = row["bid"]
				quote["mid"] = row["mid"]
				quote["high"] = row["high"]
				quote["low"] = row["low"]
				quote["originalTime"] = normalizeTime(row["originalTime"])
				quote["unit"] = row["unit"]
			}
			quotes[metal] = quote
		}
	}
	return source.Success(map[string]any{
		"base_currency": currencyCode,
		"quotes":        quotes,
	})
}

// normalizeTime rewrites the vendor's RFC 3339 timestamp into the
// space-separated form the quote docs promise. Unparseable values pass
// through untouched.
func normalizeTime(v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	t, err := time.Parse("2006-01-02T15:04:05Z", str)
	if err != nil {
		return str
	}
	return t.Format("2006-01-02 15:04:05")
}

// Package commodities serves commodity market data through the vendor
// proxy.
package commodities

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// Source exposes the supported-commodity catalog and latest market
// prices.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the commodities source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "commodities",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "commodities", cfg.Hosts.Commodities)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "commodities",
		DisplayName: "Commodities",
		Description: "Commodity price data source, provides price information for commodities such as COCOA, COFFEE, CORN, OIL, SOYBEAN, SUGAR, WHEAT, etc.",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "get_supported_commodities",
			Summary: "List the commodities and currencies that can be queried for prices.",
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "commodities": [
      {
        "commodity_code": "COCOA",
        "commodity_name": "Cocoa",
        "commodity_weight_measurement": "Metric Ton (mt)"
      }
    ],
    "currencies": [
      {"currency_code": "USD", "currency_name": "United States Dollar"}
    ]
  }
}`,
			},
			Example: `result := commoditiesSource.Supported(ctx)
if result["success"] == true {
	fmt.Println(result["data"])
}`,
		},
		{
			Name:    "get_commodities_price",
			Summary: "Get the latest open/high/low/current quotes for one or more commodities.",
			Parameters: []source.ParamDoc{
				{Name: "commodity_code", Type: "string", Doc: `comma-separated commodity codes, e.g. "COCOA,CORN,OIL", from get_supported_commodities`},
				{Name: "currency_code", Type: "string", Doc: `currency code, e.g. "USD", from get_supported_commodities`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "base_currency": "USD",
    "rates": {
      "COCOA": {"open": 9270, "high": 9633, "low": 9201, "prev": 9288, "current": 9590}
    }
  }
}`,
			},
			Example: `result := commoditiesSource.Prices(ctx, "COCOA,CORN", "USD")
if result["success"] != true {
	log.Printf("price lookup failed: %v", result["error"])
}`,
		},
	}
}

// Supported lists the commodities and currencies the vendor can quote.
func (s *Source) Supported(ctx context.Context) map[string]any {
	data, err := s.client.Get(ctx, "get_supported_commodities", "/v1/supported", nil)
	if err != nil {
		return source.Failure(err)
	}
	if err := vendorOK(data); err != nil {
		return source.Failure(err)
	}
	return source.Success(map[string]any{
		"commodities": data["supported_commodities"],
		"currencies":  data["supported_currencies"],
	})
}

// Prices fetches the latest quotes for the given comma-separated
// commodity codes, denominated in currencyCode.
func (s *Source) Prices(ctx context.Context, commodityCode, currencyCode string) map[string]any {
	query := url.Values{}
	query.Set("symbols", commodityCode)
	query.Set("base", currencyCode)
	data, err := s.client.Get(ctx, "get_commodities_price", "/v1/market-data", query)
	if err != nil {
		return source.Failure(err)
	}
	if err := vendorOK(data); err != nil {
		return source.Failure(err)
	}
	return source.Success(map[string]any{
		"base_currency": data["base_currency"],
		"rates":         data["rates"],
	})
}

// vendorOK rejects responses whose own success flag is unset, which
// this vendor uses instead of HTTP status codes for query errors.
func vendorOK(data map[string]any) error {
	if ok, _ := data["success"].(bool); ok {
		return nil
	}
	return fmt.Errorf("API response failed: %v", data)
}

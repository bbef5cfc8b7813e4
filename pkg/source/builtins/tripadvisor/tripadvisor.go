// Package tripadvisor serves location search and details from the
// TripAdvisor content API through the vendor proxy.
package tripadvisor

import (
	"context"
	"errors"
	"net/url"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// SearchQuery bundles the location search filters. Zero values are
// omitted from the vendor request.
type SearchQuery struct {
	Query    string // text to search for
	Language string // default "en"
	Category string // hotels, attractions, restaurants or geos
	Phone    string
	Address  string
	LatLong  string // "42.3455,-71.0983"
}

// Source exposes location search and per-location details.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the tripadvisor
// source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "tripadvisor",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "tripadvisor", cfg.Hosts.Tripadvisor)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "tripadvisor",
		DisplayName: "TripAdvisor",
		Description: "TripAdvisor official API data source, provides location info, reviews, and image search from TripAdvisor.",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_locations",
			Summary: "Search for hotels, restaurants and attractions by text.",
			Parameters: []source.ParamDoc{
				{Name: "searchQuery", Type: "string", Doc: "the text to search for"},
				{Name: "language", Type: "string", Doc: `language code, default "en"`},
				{Name: "category", Type: "string", Doc: "category filter: hotels|attractions|restaurants|geos, optional"},
				{Name: "phone", Type: "string", Doc: "phone number to search for, optional"},
				{Name: "address", Type: "string", Doc: "address to search for, optional"},
				{Name: "latLong", Type: "string", Doc: `latitude,longitude coordinates, e.g. "42.3455,-71.0983", optional`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": [
    {
      "location_id": "13189438",
      "name": "Hotel Xcaret Mexico",
      "address_obj": {
        "street1": "...",
        "city": "Playa del Carmen",
        "state": "Quintana Roo",
        "country": "Mexico",
        "postalcode": "77710",
        "address_string": "..."
      }
    }
  ]
}`,
			},
			Example: `result := tripadvisorSource.SearchLocations(ctx, tripadvisor.SearchQuery{
	Query:    "Hotel Xcaret",
	Category: "hotels",
})
if result["success"] != true {
	log.Printf("location search failed: %v", result["error"])
}`,
		},
		{
			Name:    "get_location_details",
			Summary: "Get detailed information about one location, including ratings and rankings.",
			Parameters: []source.ParamDoc{
				{Name: "locationId", Type: "string", Doc: "TripAdvisor location ID"},
				{Name: "language", Type: "string", Doc: `language code, default "en"`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "location_id": "13189438",
    "name": "Hotel Xcaret Mexico",
    "description": "...",
    "web_url": "https://...",
    "address_obj": {...},
    "ancestors": [{"level": "...", "name": "...", "location_id": "..."}],
    "ranking_data": {"ranking_string": "#27 of 392 hotels in Playa del Carmen", ...},
    "rating": "4.7",
    "num_reviews": "14152",
    "subratings": {...},
    "price_level": "$$$$",
    "amenities": [...],
    "trip_types": [...]
  }
}`,
			},
			Example: `result := tripadvisorSource.LocationDetails(ctx, "13189438", "en")
if result["success"] == true {
	fmt.Println(result["data"])
}`,
		},
		{
			Name:           "get_location_photos",
			Summary:        "Get high-quality photos for a location.",
			NotImplemented: true,
		},
	}
}

// SearchLocations searches for locations matching the query text.
func (s *Source) SearchLocations(ctx context.Context, q SearchQuery) map[string]any {
	query := url.Values{}
	query.Set("searchQuery", q.Query)
	query.Set("language", defaultLanguage(q.Language))
	if q.Category != "" {
		query.Set("category", q.Category)
	}
	if q.Phone != "" {
		query.Set("phone", q.Phone)
	}
	if q.Address != "" {
		query.Set("address", q.Address)
	}
	if q.LatLong != "" {
		query.Set("latLong", q.LatLong)
	}

	data, err := s.client.Get(ctx, "search_locations", "/api/v1/location/search", query)
	if err != nil {
		return source.Failure(err)
	}
	hits := source.Items(data["data"])
	if len(hits) == 0 {
		return source.Failure(errors.New("No data returned from Tripadvisor API"))
	}
	return source.Success(hits)
}

// LocationDetails fetches the detail record for one location ID.
func (s *Source) LocationDetails(ctx context.Context, locationID, language string) map[string]any {
	query := url.Values{}
	query.Set("language", defaultLanguage(language))

	path := "/api/v1/location/" + url.PathEscape(locationID) + "/details"
	data, err := s.client.Get(ctx, "get_location_details", path, query)
	if err != nil {
		return source.Failure(err)
	}
	if len(data) == 0 {
		return source.Failure(errors.New("No data returned from Tripadvisor API"))
	}
	return source.Success(locationDetails(data))
}

// LocationPhotos is declared as a capability but not wired up yet, so
// callers get a uniform failure instead of a nil panic.
func (s *Source) LocationPhotos(ctx context.Context, locationID, language string) map[string]any {
	return source.Failure(errors.New("not implemented"))
}

func defaultLanguage(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}

// locationDetails condenses the vendor's detail document to the
// documented fields.
func locationDetails(data map[string]any) map[string]any {
	detail := map[string]any{}
	for _, key := range detailFields {
		detail[key] = data[key]
	}
	detail["address_obj"] = pick(data["address_obj"],
		"street1", "city", "state", "country", "postalcode", "address_string")
	detail["ancestors"] = pickList(data["ancestors"], "level", "name", "location_id")
	detail["ranking_data"] = pick(data["ranking_data"],
		"geo_location_id", "ranking_string", "geo_location_name", "ranking_out_of", "ranking")
	detail["subratings"] = subratings(data["subratings"])
	detail["category"] = pick(data["category"], "name", "localized_name")
	detail["subcategory"] = pickList(data["subcategory"], "name", "localized_name")
	detail["trip_types"] = pickList(data["trip_types"], "name", "localized_name", "value")
	return detail
}

var detailFields = []string{
	"location_id", "name", "description", "web_url", "latitude",
	"longitude", "timezone", "phone", "rating", "num_reviews",
	"review_rating_count", "photo_count", "see_all_photos",
	"price_level", "amenities", "styles", "neighborhood_info", "awards",
}

func pick(v any, keys ...string) map[string]any {
	m, _ := v.(map[string]any)
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = m[key]
	}
	return out
}

func pickList(v any, keys ...string) []map[string]any {
	items := source.Items(v)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		entry := make(map[string]any, len(keys))
		for _, key := range keys {
			entry[key] = item[key]
		}
		out = append(out, entry)
	}
	return out
}

func subratings(v any) map[string]any {
	raw, _ := v.(map[string]any)
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		out[key] = pick(value, "name", "localized_name", "value")
	}
	return out
}

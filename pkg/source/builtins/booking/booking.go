// Package booking serves hotel search through the vendor proxy.
//
// Hotel search is a two-step flow: the destination name is resolved to
// a destination ID first, then hotels are searched within it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// HotelQuery bundles the hotel search filters. Zero values fall back
// to the vendor defaults.
type HotelQuery struct {
	DestName         string
	ArrivalDate      string  // check-in date, YYYY-MM-DD
	DepartureDate    string  // check-out date, YYYY-MM-DD
	Adults           int     // default 1
	ChildrenAge      string  // comma separated ages, e.g. "0,17"
	RoomQty          int     // default 1
	PageNumber       int     // default 1
	PriceMin         float64 // 0 means no lower bound
	PriceMax         float64 // 0 means no upper bound
	LanguageCode     string  // default "en-us"
	CurrencyCode     string  // default "USD"
	SortBy           string  // default "bayesian_review_score"
	CategoriesFilter string  // star filter, e.g. "class::4,class::5"
}

// DetailQuery selects the hotel and stay to price a detail view for.
type DetailQuery struct {
	HotelID         string
	ArrivalDate     string // YYYY-MM-DD
	DepartureDate   string // YYYY-MM-DD
	Adults          int    // default 1
	ChildrenAge     string // comma separated ages
	RoomQty         int    // default 1
	Units           string // default "metric"
	TemperatureUnit string // default "c"
	LanguageCode    string // default "en-us"
	CurrencyCode    string // default "EUR"
}

// Source exposes hotel search and hotel details.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the booking source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "booking",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "booking", cfg.Hosts.Booking)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "booking",
		DisplayName: "Booking.com",
		Description: "Booking.com data source, providing flight search and hotel search services",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_hotels_by_dest_name",
			Summary: "Search hotels in a destination by name for a given stay.",
			Parameters: []source.ParamDoc{
				{Name: "dest_name", Type: "string", Doc: `destination name, e.g. "shanghai"`},
				{Name: "arrival_date", Type: "string", Doc: "check-in date, YYYY-MM-DD"},
				{Name: "departure_date", Type: "string", Doc: "check-out date, YYYY-MM-DD"},
				{Name: "adults", Type: "int", Doc: "number of adults, default 1"},
				{Name: "children_age", Type: "string", Doc: `children's ages, comma separated, e.g. "0,17", optional`},
				{Name: "room_qty", Type: "int", Doc: "number of rooms, default 1"},
				{Name: "page_number", Type: "int", Doc: "page number, default 1"},
				{Name: "price_min", Type: "float64", Doc: "minimum price, optional"},
				{Name: "price_max", Type: "float64", Doc: "maximum price, optional"},
				{Name: "currency_code", Type: "string", Doc: "currency code, default USD"},
				{Name: "sort_by", Type: "string", Doc: "sort order: upsort_bh|popularity|distance|class_descending|class_ascending|bayesian_review_score|price, default bayesian_review_score"},
				{Name: "categories_filter", Type: "string", Doc: `star rating filter, e.g. "class::1,class::2", optional`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "destination": {"name": "Shanghai", "dest_id": "-1924465", "search_type": "city"},
    "hotels": [
      {
        "hotel_id": "123456",
        "name": "Atour Hotel Shanghai Bund",
        "rating": 4,
        "review_score": 8.5,
        "review_count": 570,
        "location": {"latitude": 31.234571, "longitude": 121.488426},
        "price": {"currency": "CNY", "amount": 1758.78, "price_per_night": 879.39}
      }
    ]
  }
}`,
			},
			Example: `result := bookingSource.SearchHotels(ctx, booking.HotelQuery{
	DestName:      "shanghai",
	ArrivalDate:   "2025-04-19",
	DepartureDate: "2025-04-26",
})
if result["success"] != true {
	log.Printf("hotel search failed: %v", result["error"])
}`,
		},
		{
			Name:    "search_hotel_details",
			Summary: "Get detailed information for one hotel and stay, including rooms and facilities.",
			Parameters: []source.ParamDoc{
				{Name: "hotel_id", Type: "string", Doc: "hotel ID from search_hotels_by_dest_name"},
				{Name: "arrival_date", Type: "string", Doc: "check-in date, YYYY-MM-DD"},
				{Name: "departure_date", Type: "string", Doc: "check-out date, YYYY-MM-DD"},
				{Name: "adults", Type: "int", Doc: "number of adults, default 1"},
				{Name: "children_age", Type: "string", Doc: "children's ages, comma separated, optional"},
				{Name: "room_qty", Type: "int", Doc: "number of rooms, default 1"},
				{Name: "currency_code", Type: "string", Doc: "currency code, default EUR"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "hotel_id": 191605,
    "hotel_name": "Novotel Mumbai Juhu Beach",
    "url": "https://...",
    "review_nr": 2148,
    "rating": 6.1,
    "address": "Juhu Beach, Maharastra",
    "city": "Mumbai",
    "rooms": {"19160501": {"photos": [...], "description": "...", "bed_configurations": [...]}},
    "facilities": [...],
    "spoken_languages": [...]
  }
}`,
			},
			Example: `result := bookingSource.HotelDetails(ctx, booking.DetailQuery{
	HotelID:       "191605",
	ArrivalDate:   "2025-04-26",
	DepartureDate: "2025-04-27",
})
if result["success"] != true {
	log.Printf("detail fetch failed: %v", result["error"])
}`,
		},
	}
}

// SearchHotels resolves the destination name and searches hotels in
// the best match.
func (s *Source) SearchHotels(ctx context.Context, q HotelQuery) map[string]any {
	destinations, err := s.destinations(ctx, q.DestName)
	if err != nil {
		return source.Failure(err)
	}
	if len(destinations) == 0 {
		return source.Failure(fmt.Errorf("No matching destination found: %s", q.DestName))
	}
	dest := destinations[0]
	destID := fmt.Sprint(dest["dest_id"])
	// The search endpoint wants the type uppercased even though the
	// destination lookup reports it lowercase.
	searchType := strings.ToUpper(fmt.Sprint(dest["search_type"]))

	hotels, err := s.hotelsByDest(ctx, destID, searchType, q)
	if err != nil {
		return source.Failure(err)
	}
	return source.Success(map[string]any{
		"destination": map[string]any{
			"name":        dest["name"],
			"dest_id":     dest["dest_id"],
			"search_type": dest["search_type"],
		},
		"hotels": hotels,
	})
}

// HotelDetails fetches room-level details for one hotel and stay.
func (s *Source) HotelDetails(ctx context.Context, q DetailQuery) map[string]any {
	query := url.Values{}
	query.Set("hotel_id", q.HotelID)
	query.Set("arrival_date", q.ArrivalDate)
	query.Set("departure_date", q.DepartureDate)
	query.Set("adults", strconv.Itoa(defaultInt(q.Adults, 1)))
	query.Set("room_qty", strconv.Itoa(defaultInt(q.RoomQty, 1)))
	query.Set("units", defaultString(q.Units, "metric"))
	query.Set("temperature_unit", defaultString(q.TemperatureUnit, "c"))
	query.Set("languagecode", defaultString(q.LanguageCode, "en-us"))
	query.Set("currency_code", defaultString(q.CurrencyCode, "EUR"))
	if q.ChildrenAge != "" {
		query.Set("children_age", q.ChildrenAge)
	}

	data, err := s.client.Get(ctx, "search_hotel_details", "/api/v1/hotels/getHotelDetails", query)
	if err != nil {
		return source.Failure(err)
	}
	if err := apiStatus(data); err != nil {
		return source.Failure(err)
	}
	detail, _ := data["data"].(map[string]any)
	return source.Success(hotelDetail(detail))
}

func (s *Source) destinations(ctx context.Context, name string) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("query", name)
	data, err := s.client.Get(ctx, "search_hotels_by_dest_name", "/api/v1/hotels/searchDestination", query)
	if err != nil {
		return nil, err
	}
	if err := apiStatus(data); err != nil {
		return nil, err
	}
	items := source.Items(data["data"])
	destinations := make([]map[string]any, 0, len(items))
	for _, dest := range items {
		destinations = append(destinations, map[string]any{
			"dest_id":     dest["dest_id"],
			"search_type": dest["search_type"],
			"name":        dest["name"],
			"city_name":   dest["city_name"],
			"label":       dest["label"],
			"longitude":   dest["longitude"],
			"latitude":    dest["latitude"],
			"country":     dest["country"],
		})
	}
	return destinations, nil
}

func (s *Source) hotelsByDest(ctx context.Context, destID, searchType string, q HotelQuery) ([]map[string]any, error) {
	query := url.Values{}
	query.Set("dest_id", destID)
	query.Set("search_type", searchType)
	query.Set("arrival_date", q.ArrivalDate)
	query.Set("departure_date", q.DepartureDate)
	query.Set("adults", strconv.Itoa(defaultInt(q.Adults, 1)))
	query.Set("room_qty", strconv.Itoa(defaultInt(q.RoomQty, 1)))
	query.Set("page_number", strconv.Itoa(defaultInt(q.PageNumber, 1)))
	query.Set("languagecode", defaultString(q.LanguageCode, "en-us"))
	query.Set("currency_code", defaultString(q.CurrencyCode, "USD"))
	query.Set("units", "metric")
	query.Set("temperature_unit", "c")
	query.Set("sort_by", defaultString(q.SortBy, "bayesian_review_score"))
	if q.ChildrenAge != "" {
		query.Set("children_age", q.ChildrenAge)
	}
	if q.PriceMin > 0 {
		query.Set("price_min", strconv.FormatFloat(q.PriceMin, 'f', -1, 64))
	}
	if q.PriceMax > 0 {
		query.Set("price_max", strconv.FormatFloat(q.PriceMax, 'f', -1, 64))
	}
	if q.CategoriesFilter != "" {
		query.Set("categories_filter", q.CategoriesFilter)
	}

	data, err := s.client.Get(ctx, "search_hotels_by_dest_name", "/api/v1/hotels/searchHotels", query)
	if err != nil {
		return nil, err
	}
	if err := apiStatus(data); err != nil {
		return nil, err
	}
	var raw any
	if d, ok := data["data"].(map[string]any); ok {
		raw = d["hotels"]
	}
	nights := stayNights(q.ArrivalDate, q.DepartureDate)
	items := source.Items(raw)
	hotels := make([]map[string]any, 0, len(items))
	for _, hotel := range items {
		hotels = append(hotels, hotelSummary(hotel, nights))
	}
	return hotels, nil
}

// apiStatus rejects responses whose status flag is unset. This vendor
// reports query errors in-band with a message field.
func apiStatus(data map[string]any) error {
	if ok, _ := data["status"].(bool); ok {
		return nil
	}
	msg := "Unknown error"
	if m, ok := data["message"]; ok && m != nil {
		if s := fmt.Sprint(m); s != "" {
			msg = s
		}
	}
	return errors.New(msg)
}

// hotelSummary flattens one search hit down to the fields planners
// compare hotels by.
func hotelSummary(hotel map[string]any, nights float64) map[string]any {
	property, _ := hotel["property"].(map[string]any)
	var grossPrice map[string]any
	if pb, ok := property["priceBreakdown"].(map[string]any); ok {
		grossPrice, _ = pb["grossPrice"].(map[string]any)
	}
	var perNight any
	if gross, ok := grossPrice["value"].(float64); ok && nights > 0 {
		perNight = math.Round(gross/nights*100) / 100
	}
	rating := property["accuratePropertyClass"]
	if rating == nil || rating == float64(0) {
		rating = property["propertyClass"]
	}
	return map[string]any{
		"hotel_id":     hotel["hotel_id"],
		"name":         property["name"],
		"rating":       rating,
		"review_score": property["reviewScore"],
		"review_count": property["reviewCount"],
		"location": map[string]any{
			"latitude":  property["latitude"],
			"longitude": property["longitude"],
		},
		"price": map[string]any{
			"currency":        grossPrice["currency"],
			"amount":          grossPrice["value"],
			"price_per_night": perNight,
		},
	}
}

func stayNights(arrival, departure string) float64 {
	start, err := time.Parse("2006-01-02", arrival)
	if err != nil {
		return 0
	}
	end, err := time.Parse("2006-01-02", departure)
	if err != nil {
		return 0
	}
	return end.Sub(start).Hours() / 24
}

// hotelDetail condenses the vendor's detail document: room records are
// cut down to photos, bed setup and child policy, facility and notice
// lists to their display strings.
func hotelDetail(data map[string]any) map[string]any {
	detail := map[string]any{}
	for _, key := range detailFields {
		detail[key] = data[key]
	}
	if raw, ok := data["raw_data"].(map[string]any); ok {
		detail["rating"] = raw["reviewScore"]
	}
	district := data["district"]
	if district == data["city"] {
		district = ""
	}
	detail["district"] = district

	var facilities []string
	if block, ok := data["facilities_block"].(map[string]any); ok {
		for _, facility := range source.Items(block["facilities"]) {
			if name, _ := facility["name"].(string); name != "" {
				facilities = append(facilities, name)
			}
		}
	}
	detail["facilities"] = facilities

	var notices []string
	for _, item := range source.Items(data["hotel_important_information_with_codes"]) {
		if phrase, _ := item["phrase"].(string); phrase != "" {
			notices = append(notices, phrase)
		}
	}
	detail["hotel_important_information"] = notices
	detail["rooms"] = roomSummaries(data["rooms"])
	return detail
}

var detailFields = []string{
	"hotel_id", "hotel_name", "url", "review_nr", "arrival_date",
	"departure_date", "latitude", "longitude", "address", "city",
	"countrycode", "country_trans", "currency_code", "zip", "timezone",
	"soldout", "available_rooms", "max_rooms_in_reservation",
	"average_room_size_for_ufi_m2", "is_family_friendly", "is_closed",
	"is_cash_accepted_check_enabled", "hotel_include_breakfast",
	"family_facilities", "spoken_languages",
}

func roomSummaries(v any) map[string]any {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	rooms := make(map[string]any, len(raw))
	for id, rv := range raw {
		info, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		rooms[id] = map[string]any{
			"photos":                 roomPhotos(info["photos"]),
			"children_and_beds_text": childrenAndBeds(info["children_and_beds_text"]),
			"description":            info["description"],
			"bed_configurations":     bedConfigurations(info["bed_configurations"]),
		}
	}
	return rooms
}

// roomPhotos prefers the large rendition and falls back to the
// original upload.
func roomPhotos(v any) []string {
	var photos []string
	for _, photo := range source.Items(v) {
		u, _ := photo["url_max1280"].(string)
		if u == "" {
			u, _ = photo["url_original"].(string)
		}
		if u != "" {
			photos = append(photos, u)
		}
	}
	return photos
}

func childrenAndBeds(v any) map[string]any {
	raw, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		switch value.(type) {
		case []any:
			var texts []string
			for _, item := range source.Items(value) {
				if text, _ := item["text"].(string); text != "" {
					texts = append(texts, text)
				}
			}
			out[key] = texts
		case float64:
			out[key] = value
		}
	}
	return out
}

func bedConfigurations(v any) []map[string]any {
	var beds []map[string]any
	for _, cfg := range source.Items(v) {
		for _, bed := range source.Items(cfg["bed_types"]) {
			beds = append(beds, map[string]any{
				"name_with_count": bed["name_with_count"],
				"description":     bed["description"],
			})
		}
	}
	return beds
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

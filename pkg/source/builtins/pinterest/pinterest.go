// Package pinterest serves pin search and user lookups through the
// vendor proxy.
package pinterest

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

// Source exposes pin search and user profiles.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the pinterest source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "pinterest",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "pinterest", cfg.Hosts.Pinterest)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "pinterest",
		DisplayName: "Pinterest",
		Description: "Pinterest data source, provides user and pin search features for Pinterest.",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_pins",
			Summary: "Search pins matching a keyword.",
			Parameters: []source.ParamDoc{
				{Name: "keyword", Type: "string", Doc: `search keyword, e.g. "cats"`},
				{Name: "num", Type: "int", Doc: "number of results per page, default 10"},
				{Name: "cursor", Type: "string", Doc: "pagination cursor for the next page, optional"},
				{Name: "sort", Type: "string", Doc: `sort order, "relevance" or "recent", default "relevance"`},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "keyword": "cat",
    "count": 2,
    "pins": [
      {
        "id": "5559199536733192",
        "title": "cat",
        "description": "cat",
        "alt_text": "cat",
        "auto_alt_text": "cat",
        "images": {"url": "https://xxx.jpg"},
        "videos": {"has_video": false},
        "created_at": "2025-03-04 12:26:23",
        "likes": 635,
        "pinner": {"id": "...", "image_url": "...", "follower_count": 2379, "username": "Fursnpaws", "full_name": "..."}
      }
    ],
    "cursor": "cursor123"
  }
}`,
			},
			Example: `result := pinterestSource.SearchPins(ctx, "cat", 10, "", "relevance")
if result["success"] != true {
	log.Printf("pin search failed: %v", result["error"])
}`,
		},
		{
			Name:    "get_user_info",
			Summary: "Get profile details for a Pinterest user.",
			Parameters: []source.ParamDoc{
				{Name: "username", Type: "string", Doc: "Pinterest username, not display name"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "id": "750412494069279813",
    "full_name": "Display Name",
    "username": "username",
    "image_url": "https://xxx.jpg",
    "pin_count": 6459,
    "follower_count": 2385,
    "last_pin_save_time": "2025-04-25 01:31:38",
    "recent_pin_images": ["https://xxxx.jpg"]
  }
}`,
			},
			Example: `result := pinterestSource.UserProfile(ctx, "fursnpaws")
if result["success"] == true {
	fmt.Println(result["data"])
}`,
		},
	}
}

// SearchPins searches pins matching the keyword. An empty sort means
// relevance ordering, cursor continues a previous page.
func (s *Source) SearchPins(ctx context.Context, keyword string, num int, cursor, sortOrder string) map[string]any {
	if num <= 0 {
		num = 10
	}
	if sortOrder == "" {
		sortOrder = "relevance"
	}
	payload := map[string]any{"keyword": keyword, "num": num, "sort": sortOrder}
	if cursor != "" {
		payload["nextPageCursor"] = cursor
	}

	data, err := s.client.Post(ctx, "search_pins", "/pinterest/pins/advance", nil, payload)
	if err != nil {
		return source.Failure(err)
	}
	if _, ok := data["data"]; !ok {
		return source.Failure(fmt.Errorf("API response missing data field: %v", data))
	}
	items := source.Items(data["data"])
	pins := make([]map[string]any, 0, len(items))
	for _, item := range items {
		pins = append(pins, parsePin(item))
	}
	return source.Success(map[string]any{
		"keyword": keyword,
		"count":   len(pins),
		"pins":    pins,
		"cursor":  data["nextPageCursor"],
	})
}

// UserProfile fetches the profile of the user best matching username.
func (s *Source) UserProfile(ctx context.Context, username string) map[string]any {
	query := url.Values{}
	query.Set("keyword", username)
	data, err := s.client.Get(ctx, "get_user_info", "/pinterest/users/relevance", query)
	if err != nil {
		return source.Failure(err)
	}
	return source.Success(parseProfile(data))
}

func parsePin(pin map[string]any) map[string]any {
	video := map[string]any{"has_video": false}
	if videos, ok := pin["videos"].(map[string]any); ok && len(videos) > 0 {
		video["has_video"] = true
		if list, ok := videos["video_list"].(map[string]any); ok {
			for _, format := range []string{"V_HLSV4", "V_720P"} {
				if entry, ok := list[format].(map[string]any); ok {
					video[format] = map[string]any{
						"url":      entry["url"],
						"duration": entry["duration"],
					}
				}
			}
		}
	}

	var imageURL any
	if images, ok := pin["images"].(map[string]any); ok {
		imageURL = nestedURL(images, "original")
		if imageURL == nil || imageURL == "" {
			imageURL = nestedURL(images, "orig")
		}
	}

	var likes any
	if reactions, ok := pin["reaction_counts"].(map[string]any); ok {
		likes = reactions["1"]
	}

	pinner, _ := pin["pinner"].(map[string]any)
	return map[string]any{
		"id":            pin["id"],
		"title":         pin["title"],
		"description":   pin["description"],
		"alt_text":      pin["alt_text"],
		"auto_alt_text": pin["auto_alt_text"],
		"images":        map[string]any{"url": imageURL},
		"videos":        video,
		"created_at":    formatDate(pin["created_at"]),
		"likes":         likes,
		"pinner": map[string]any{
			"id":             pinner["id"],
			"image_url":      pinner["image_large_url"],
			"follower_count": pinner["follower_count"],
			"username":       pinner["username"],
			"full_name":      pinner["full_name"],
		},
	}
}

// parseProfile keeps the first relevance hit and flattens its most
// recent pin image bucket.
func parseProfile(resp map[string]any) map[string]any {
	hits := source.Items(resp["data"])
	if len(hits) == 0 {
		return map[string]any{}
	}
	user := hits[0]

	var recentImages []string
	if buckets, ok := user["recent_pin_images"].(map[string]any); ok && len(buckets) > 0 {
		keys := make([]string, 0, len(buckets))
		for key := range buckets {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, image := range source.Items(buckets[keys[len(keys)-1]]) {
			if u, _ := image["url"].(string); u != "" {
				recentImages = append(recentImages, u)
			}
		}
	}

	return map[string]any{
		"id":                 user["id"],
		"full_name":          user["full_name"],
		"username":           user["username"],
		"image_url":          user["image_large_url"],
		"pin_count":          user["pin_count"],
		"follower_count":     user["follower_count"],
		"last_pin_save_time": formatDate(user["last_pin_save_time"]),
		"recent_pin_images":  recentImages,
	}
}

func nestedURL(images map[string]any, key string) any {
	if entry, ok := images[key].(map[string]any); ok {
		return entry["url"]
	}
	return nil
}

// formatDate rewrites the vendor's "Tue, 04 Mar 2025 12:26:23 +0000"
// timestamps; anything else passes through untouched.
func formatDate(v any) any {
	str, ok := v.(string)
	if !ok || str == "" {
		return v
	}
	t, err := time.Parse(time.RFC1123Z, str)
	if err != nil {
		return str
	}
	return t.Format("2006-01-02 15:04:05")
}

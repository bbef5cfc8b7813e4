// Package twitter serves tweet search and user timelines through the
// vendor proxy.
package twitter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rhuss/relais/pkg/config"
	"github.com/rhuss/relais/pkg/source"
)

const maxLimit = 100 // vendor page limit

// SearchQuery bundles the tweet search filters. Zero values are
// omitted from the vendor request.
type SearchQuery struct {
	Query       string
	Limit       int    // default 10, capped at 100
	MinRetweets int    // minimum retweet count, 0 means no filter
	MinLikes    int    // minimum like count, 0 means no filter
	MinReplies  int    // minimum reply count, 0 means no filter
	StartDate   string // YYYY-MM-DD
	EndDate     string // YYYY-MM-DD
	Cursor      string // continuation token from a previous page
}

// TimelineQuery selects whose tweets to fetch and how many.
type TimelineQuery struct {
	Username       string
	UserID         string // takes precedence over Username when set
	Limit          int    // default 10, capped at 100
	IncludeReplies bool
	IncludePinned  bool
}

// Source exposes tweet search and user timelines.
type Source struct {
	client *source.ProxyClient
}

var _ source.Source = (*Source)(nil)

// Factory describes how the registry constructs the twitter source.
func Factory() source.Factory {
	return source.Factory{
		Name:  "twitter",
		Class: source.ClassDataSource,
		New: func(cfg *config.Sources) (source.Source, error) {
			return &Source{client: source.NewProxyClient(cfg, "twitter", cfg.Hosts.Twitter)}, nil
		},
	}
}

func (s *Source) Info() source.Info {
	return source.Info{
		Name:        "twitter",
		DisplayName: "Twitter",
		Description: "Twitter data source, providing tweet search, user info retrieval, and user tweet list retrieval",
	}
}

func (s *Source) Capabilities() []source.Capability {
	return []source.Capability{
		{
			Name:    "search_tweets",
			Summary: "Search recent tweets by keyword with engagement and date filters.",
			Parameters: []source.ParamDoc{
				{Name: "query", Type: "string", Doc: "search keywords"},
				{Name: "limit", Type: "int", Doc: "maximum number of tweets to return, default 10, max 100"},
				{Name: "min_retweets", Type: "int", Doc: "minimum number of retweets, optional"},
				{Name: "min_likes", Type: "int", Doc: "minimum number of likes, optional"},
				{Name: "min_replies", Type: "int", Doc: "minimum number of replies, optional"},
				{Name: "start_date", Type: "string", Doc: "start date YYYY-MM-DD, optional"},
				{Name: "end_date", Type: "string", Doc: "end date YYYY-MM-DD, optional"},
				{Name: "cursor", Type: "string", Doc: "pagination cursor from a previous page, optional"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "query": "golang",
    "count": 2,
    "tweets": [
      {
        "id": "1903001084357947836",
        "created_at": "2025-03-13 18:08:35",
        "text": "...",
        "media_urls": [],
        "video_urls": [],
        "author": {"id": "...", "name": "...", "username": "...", "followers_count": 0, "is_verified": false, "is_blue_verified": false},
        "public_metrics": {"retweet_count": 0, "reply_count": 0, "like_count": 0, "quote_count": 0, "view_count": 0, "bookmark_count": 0}
      }
    ],
    "cursor": "..."
  }
}`,
			},
			Example: `result := twitterSource.SearchTweets(ctx, twitter.SearchQuery{
	Query:    "golang generics",
	Limit:    20,
	MinLikes: 5,
})
if result["success"] != true {
	log.Printf("tweet search failed: %v", result["error"])
}`,
		},
		{
			Name:    "get_user_tweets",
			Summary: "Get the most recent tweets posted by a user.",
			Parameters: []source.ParamDoc{
				{Name: "username", Type: "string", Doc: "Twitter username without @ symbol"},
				{Name: "limit", Type: "int", Doc: "maximum number of tweets to return, default 10, max 100"},
				{Name: "user_id", Type: "string", Doc: "Twitter user ID, overrides username when set, optional"},
				{Name: "include_replies", Type: "bool", Doc: "whether to include reply tweets, default false"},
				{Name: "include_pinned", Type: "bool", Doc: "whether to include pinned tweets, default false"},
			},
			Returns: source.ReturnDoc{
				Type: "map[string]any",
				Doc: `{
  "success": true,
  "data": {
    "username": "elonmusk",
    "count": 5,
    "tweets": [...],  // same shape as search_tweets plus "language", "user" and "referenced_tweets"
    "cursor": "..."
  }
}`,
			},
			Example: `result := twitterSource.UserTimeline(ctx, twitter.TimelineQuery{
	Username:       "elonmusk",
	Limit:          5,
	IncludeReplies: true,
})
if result["success"] != true {
	log.Printf("timeline fetch failed: %v", result["error"])
}`,
		},
	}
}

// SearchTweets searches recent tweets matching the query.
func (s *Source) SearchTweets(ctx context.Context, q SearchQuery) map[string]any {
	query := url.Values{}
	query.Set("query", q.Query)
	query.Set("section", "top")
	query.Set("limit", strconv.Itoa(clampLimit(q.Limit)))
	if q.MinRetweets > 0 {
		query.Set("min_retweets", strconv.Itoa(q.MinRetweets))
	}
	if q.MinLikes > 0 {
		query.Set("min_likes", strconv.Itoa(q.MinLikes))
	}
	if q.MinReplies > 0 {
		query.Set("min_replies", strconv.Itoa(q.MinReplies))
	}
	if q.StartDate != "" {
		query.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		query.Set("end_date", q.EndDate)
	}
	if q.Cursor != "" {
		query.Set("continuation_token", q.Cursor)
	}

	data, err := s.client.Get(ctx, "search_tweets", "/search/search", query)
	if err != nil {
		return source.Failure(err)
	}
	if _, ok := data["results"]; !ok {
		return source.Failure(fmt.Errorf("Missing results field in API response: %v", data))
	}
	items := source.Items(data["results"])
	tweets := make([]map[string]any, 0, len(items))
	for _, item := range items {
		tweets = append(tweets, searchTweet(item))
	}
	return source.Success(map[string]any{
		"query":  q.Query,
		"count":  len(tweets),
		"tweets": tweets,
		"cursor": data["continuation_token"],
	})
}

// UserTimeline fetches the most recent tweets posted by a user.
func (s *Source) UserTimeline(ctx context.Context, q TimelineQuery) map[string]any {
	query := url.Values{}
	query.Set("username", q.Username)
	query.Set("limit", strconv.Itoa(clampLimit(q.Limit)))
	query.Set("include_replies", strconv.FormatBool(q.IncludeReplies))
	query.Set("include_pinned", strconv.FormatBool(q.IncludePinned))
	if q.UserID != "" {
		query.Set("user_id", q.UserID)
	}

	data, err := s.client.Get(ctx, "get_user_tweets", "/user/tweets", query)
	if err != nil {
		return source.Failure(err)
	}
	if _, ok := data["results"]; !ok {
		return source.Failure(fmt.Errorf("Missing results field in API response: %v", data))
	}
	items := source.Items(data["results"])
	tweets := make([]map[string]any, 0, len(items))
	for _, item := range items {
		tweets = append(tweets, timelineTweet(item))
	}
	return source.Success(map[string]any{
		"username": q.Username,
		"count":    len(tweets),
		"tweets":   tweets,
		"cursor":   data["continuation_token"],
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// searchTweet flattens a search hit. The search endpoint already
// carries media lists and only a slim author record.
func searchTweet(result map[string]any) map[string]any {
	user, _ := result["user"].(map[string]any)
	return map[string]any{
		"id":         idString(result["tweet_id"]),
		"created_at": formatDate(result["creation_date"]),
		"text":       result["text"],
		"media_urls": urlList(result["media_urls"]),
		"video_urls": urlList(result["video_urls"]),
		"author": map[string]any{
			"id":               idString(user["user_id"]),
			"name":             user["name"],
			"username":         user["username"],
			"followers_count":  count(user["follower_count"]),
			"is_verified":      flag(user["is_verified"]),
			"is_blue_verified": flag(user["is_blue_verified"]),
		},
		"public_metrics": publicMetrics(result),
	}
}

// timelineTweet flattens a timeline entry, chasing one level of
// reply/retweet/quote references.
func timelineTweet(result map[string]any) map[string]any {
	tweet := baseTweet(result)
	var ref map[string]any
	switch {
	case present(result["in_reply_to_status_id"]):
		ref = map[string]any{"type": "reply", "id": idString(result["in_reply_to_status_id"])}
	case present(result["retweet_tweet_id"]):
		if retweet, ok := result["retweet_status"].(map[string]any); ok {
			ref = baseTweet(retweet)
			ref["type"] = "retweet"
			if quoted, ok := retweet["quoted_status"].(map[string]any); ok {
				q := baseTweet(quoted)
				q["type"] = "quote"
				ref["quoted_status"] = q
			}
		}
	case present(result["quoted_status_id"]):
		if quoted, ok := result["quoted_status"].(map[string]any); ok {
			ref = baseTweet(quoted)
			ref["type"] = "quote"
		}
	}
	if ref != nil {
		tweet["referenced_tweets"] = ref
	}
	return tweet
}

// baseTweet flattens a timeline tweet record. Unlike search hits, the
// timeline endpoint reports media under singular keys that may hold a
// single URL or a list.
func baseTweet(result map[string]any) map[string]any {
	user, _ := result["user"].(map[string]any)
	return map[string]any{
		"id":             idString(result["tweet_id"]),
		"created_at":     formatDate(result["creation_date"]),
		"text":           result["text"],
		"language":       result["language"],
		"media_urls":     urlList(result["media_url"]),
		"video_urls":     urlList(result["video_url"]),
		"public_metrics": publicMetrics(result),
		"user":           parseUser(user),
	}
}

func parseUser(user map[string]any) map[string]any {
	return map[string]any{
		"id":                 idString(user["user_id"]),
		"username":           user["username"],
		"name":               user["name"],
		"created_at":         formatDate(user["creation_date"]),
		"description":        user["description"],
		"location":           user["location"],
		"url":                user["external_url"],
		"profile_image_url":  user["profile_pic_url"],
		"profile_banner_url": user["profile_banner_url"],
		"public_metrics": map[string]any{
			"followers_count": count(user["follower_count"]),
			"following_count": count(user["following_count"]),
			"tweet_count":     count(user["number_of_tweets"]),
			"listed_count":    count(user["listed_count"]),
			"like_count":      count(user["favourites_count"]),
		},
		"verified":      flag(user["is_verified"]),
		"blue_verified": flag(user["is_blue_verified"]),
		"private":       flag(user["is_private"]),
		"bot":           flag(user["bot"]),
	}
}

func publicMetrics(result map[string]any) map[string]any {
	return map[string]any{
		"retweet_count":  count(result["retweet_count"]),
		"reply_count":    count(result["reply_count"]),
		"like_count":     count(result["favorite_count"]),
		"quote_count":    count(result["quote_count"]),
		"view_count":     count(result["views"]),
		"bookmark_count": count(result["bookmark_count"]),
	}
}

// formatDate rewrites the vendor's "Thu Mar 13 18:08:35 +0000 2025"
// timestamps; anything else passes through untouched.
func formatDate(v any) any {
	str, ok := v.(string)
	if !ok || str == "" {
		return v
	}
	t, err := time.Parse(time.RubyDate, str)
	if err != nil {
		return str
	}
	return t.Format("2006-01-02 15:04:05")
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func urlList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		if t == "" {
			return []any{}
		}
		return []any{t}
	default:
		return []any{}
	}
}

func count(v any) any {
	if v == nil {
		return 0
	}
	return v
}

func flag(v any) any {
	if v == nil {
		return false
	}
	return v
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return true
	}
}

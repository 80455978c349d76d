package news

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openrelief/newstracker/internal/config"
)

// Headline is one external news item used to enrich tracker answers.
type Headline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SourceName  string    `json:"source_name"`
	PublishedAt time.Time `json:"published_at"`
}

// Client fetches location-scoped headlines from a GNews-style API.
// Headlines are a nice-to-have: a missing API key, an HTTP failure or a
// malformed body all degrade to an empty list, never an error.
type Client struct {
	apiKey   string
	baseURL  string
	cacheTTL time.Duration
	http     *http.Client
	cache    redis.Cmdable // optional, nil disables caching
}

// NewClient creates a headline client. Pass a nil cache to disable caching.
func NewClient(cfg config.NewsConfig, cache redis.Cmdable) *Client {
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		cacheTTL: cfg.CacheTTL,
		http:     &http.Client{Timeout: 5 * time.Second},
		cache:    cache,
	}
}

type gnewsResponse struct {
	Articles []struct {
		Title       string    `json:"title"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func cacheKey(location string) string {
	return "news:headlines:" + strings.ToLower(strings.TrimSpace(location))
}

// Headlines returns recent headlines for a location. The result may be
// empty; it is never an error.
func (c *Client) Headlines(ctx context.Context, location string) []Headline {
	if c.apiKey == "" {
		return nil
	}

	if cached := c.fromCache(ctx, location); cached != nil {
		return cached
	}

	q := url.Values{}
	q.Set("q", location+" disaster OR emergency OR weather")
	q.Set("max", "5")
	q.Set("lang", "en")
	q.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		slog.Warn("news: building request failed", "error", err)
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("news: fetch failed", "location", location, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("news: unexpected status", "location", location, "status", resp.StatusCode)
		return nil
	}

	var body gnewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("news: decoding response failed", "error", err)
		return nil
	}

	headlines := make([]Headline, 0, len(body.Articles))
	for _, a := range body.Articles {
		headlines = append(headlines, Headline{
			Title:       a.Title,
			URL:         a.URL,
			SourceName:  a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}

	c.toCache(ctx, location, headlines)
	return headlines
}

func (c *Client) fromCache(ctx context.Context, location string) []Headline {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, cacheKey(location)).Bytes()
	if err != nil {
		return nil // miss or redis trouble, fall through to the API
	}
	var headlines []Headline
	if err := json.Unmarshal(data, &headlines); err != nil {
		return nil
	}
	return headlines
}

func (c *Client) toCache(ctx context.Context, location string, headlines []Headline) {
	if c.cache == nil || len(headlines) == 0 {
		return
	}
	data, err := json.Marshal(headlines)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(location), data, c.cacheTTL).Err(); err != nil {
		slog.Warn("news: caching headlines failed", "error", err)
	}
}

// Format renders headlines as prompt-ready lines.
func Format(headlines []Headline) string {
	if len(headlines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, h := range headlines {
		fmt.Fprintf(&b, "- %s (%s, %s)\n", h.Title, h.SourceName, h.PublishedAt.Format("2006-01-02"))
	}
	return b.String()
}

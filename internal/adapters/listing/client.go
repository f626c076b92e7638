package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vodfetch/internal/domain"
	"vodfetch/internal/ports"
)

// Client pulls the provider's catalog feeds. The feeds are plain JSON
// envelopes of the form {"totalResults": n, "entries": [...]}.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

type feedEnvelope struct {
	TotalResults int         `json:"totalResults"`
	Entries      []feedEntry `json:"entries"`
}

type feedEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Episode     int    `json:"episodeNumber"`
	ManifestURL string `json:"manifestUrl"`
	SubtitleURL string `json:"subtitleUrl"`
}

// Movies fetches the film feed. The feed is paged by an explicit range
// parameter, so a first one-item probe reads the total count and a second
// request pulls everything in one page.
func (c *Client) Movies(ctx context.Context) ([]ports.CatalogTitle, error) {
	probe, err := c.getFeed(ctx, c.moviesURL(1))
	if err != nil {
		return nil, err
	}
	full := probe
	if probe.TotalResults > len(probe.Entries) {
		full, err = c.getFeed(ctx, c.moviesURL(probe.TotalResults))
		if err != nil {
			return nil, err
		}
	}

	out := make([]ports.CatalogTitle, 0, len(full.Entries))
	for _, e := range full.Entries {
		out = append(out, ports.CatalogTitle{
			ID:          entryID(e.ID),
			Name:        e.Title,
			Kind:        "movie",
			ManifestURL: e.ManifestURL,
			SubtitleURL: e.SubtitleURL,
		})
	}
	return out, nil
}

func (c *Client) Series(ctx context.Context) ([]ports.CatalogTitle, error) {
	feed, err := c.getFeed(ctx, c.baseURL+"/feed/programs?form=json")
	if err != nil {
		return nil, err
	}
	out := make([]ports.CatalogTitle, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		out = append(out, ports.CatalogTitle{
			ID:   entryID(e.ID),
			Name: e.Title,
			Kind: "series",
		})
	}
	return out, nil
}

func (c *Client) Episodes(ctx context.Context, series ports.CatalogTitle) ([]domain.TitleEntry, error) {
	feed, err := c.getFeed(ctx, fmt.Sprintf("%s/feed/programs/%s/episodes?form=json", c.baseURL, series.ID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.TitleEntry, 0, len(feed.Entries))
	for i, e := range feed.Entries {
		num := e.Episode
		if num <= 0 {
			// Some feeds omit the episode number; fall back to feed order.
			num = i + 1
		}
		out = append(out, domain.TitleEntry{
			ID:          entryID(e.ID),
			Name:        e.Title,
			Kind:        domain.KindEpisode,
			SeriesID:    series.ID,
			SeriesName:  series.Name,
			Episode:     num,
			ManifestURL: e.ManifestURL,
			SubtitleURL: e.SubtitleURL,
		})
	}
	return out, nil
}

func (c *Client) moviesURL(rangeEnd int) string {
	return fmt.Sprintf("%s/feed/movies?form=json&count=true&range=1-%d", c.baseURL, rangeEnd)
}

func (c *Client) getFeed(ctx context.Context, url string) (feedEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return feedEnvelope{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return feedEnvelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feedEnvelope{}, fmt.Errorf("listing feed %s: unexpected status %d", url, resp.StatusCode)
	}

	var env feedEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return feedEnvelope{}, fmt.Errorf("listing feed %s: decode: %w", url, err)
	}
	return env, nil
}

// entryID keeps the trailing path component of feed identifiers, which the
// provider ships as full URIs ("http://data.example.com/media/12345").
func entryID(raw string) string {
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

// Package catalog imports movies and members from public JSON feeds.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxFeedBytes = 32 << 20

// Show is one entry of the shows feed.
type Show struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Genres    []string `json:"genres"`
	Premiered string   `json:"premiered"`
	Image     *struct {
		Medium   string `json:"medium"`
		Original string `json:"original"`
	} `json:"image"`
}

// Person is one entry of the members feed.
type Person struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Address  struct {
		City string `json:"city"`
	} `json:"address"`
}

// Client fetches the upstream feeds. Requests share one rate limiter so
// concurrent fetches stay polite to the upstream hosts.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	showsURL   string
	membersURL string
}

// NewClient constructs a Client. A nil httpClient uses a client with a
// 30 second timeout. rps of zero or less disables throttling.
func NewClient(httpClient *http.Client, showsURL, membersURL string, rps float64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		showsURL:   showsURL,
		membersURL: membersURL,
	}
}

// Shows downloads the shows feed.
func (c *Client) Shows(ctx context.Context) ([]Show, error) {
	var out []Show
	if err := c.getJSON(ctx, c.showsURL, &out); err != nil {
		return nil, fmt.Errorf("catalog: shows: %w", err)
	}
	return out, nil
}

// People downloads the members feed.
func (c *Client) People(ctx context.Context) ([]Person, error) {
	var out []Person
	if err := c.getJSON(ctx, c.membersURL, &out); err != nil {
		return nil, fmt.Errorf("catalog: members: %w", err)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(target)
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/campusworks/edubase"
)

const (
	defaultTimeout = 3 * time.Second
)

// Client talks to the external identity provider that owns user
// accounts. Lookups are cached so history rendering does not hammer
// the provider with one request per revision.
type Client struct {
	client    *http.Client
	cache     *cache.Cache
	userAgent string
	baseURL   string
}

func New(baseURL string) *Client {
	httpClient := http.Client{
		Timeout: defaultTimeout,
	}

	c := &Client{
		client:    &httpClient,
		cache:     cache.New(10*time.Minute, 15*time.Minute),
		userAgent: "edubase",
		baseURL:   baseURL,
	}
	httpClient.Transport = c
	return c
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func (c *Client) httpRequest(ctx context.Context, method, path string, response any) error {

	if c.baseURL == "" {
		return fmt.Errorf("identity provider base url is not configured")
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}

	return nil
}

func (c *Client) GetUser(ctx context.Context, userID int64) (edubase.UserInfo, error) {

	cacheKey := fmt.Sprintf("user:%d", userID)
	x, found := c.cache.Get(cacheKey)
	if found {
		return x.(edubase.UserInfo), nil
	}

	var info edubase.UserInfo
	err := c.httpRequest(ctx, "GET", fmt.Sprintf("/api/v1/users/%d", userID), &info)
	if err != nil {
		return edubase.UserInfo{}, fmt.Errorf("failed to get user %d: %v", userID, err)
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)

	return info, nil
}

// DisplayName never fails; an unreachable provider degrades to a
// placeholder name.
func (c *Client) DisplayName(ctx context.Context, userID int64) string {
	info, err := c.GetUser(ctx, userID)
	if err != nil {
		return fmt.Sprintf("user#%d", userID)
	}
	return info.DisplayName
}

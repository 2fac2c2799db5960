// Package iplookup resolves the best-effort client address recorded with a
// contact submission. Every path degrades to model.UnknownIP instead of failing.
package iplookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/portfolio-contact/backend/internal/model"
)

// DefaultURL is the public-address echo service queried by Client.
const DefaultURL = "https://api.ipify.org?format=json"

// FromRequest extracts the real client IP, reading from the rightmost trusted
// proxy position in X-Forwarded-For to prevent spoofing.
func FromRequest(r *http.Request, trustedProxyCount int) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && trustedProxyCount > 0 {
		parts := strings.Split(xff, ",")
		idx := len(parts) - trustedProxyCount
		if idx >= 0 && idx < len(parts) {
			if ip := strings.TrimSpace(parts[idx]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr == "" {
			return model.UnknownIP
		}
		return r.RemoteAddr
	}
	return host
}

// Client asks an external echo service for the caller's public address.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client. An empty url selects DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

type lookupResponse struct {
	IP string `json:"ip"`
}

// Lookup returns the caller's public address or model.UnknownIP.
func (c *Client) Lookup(ctx context.Context) string {
	ip, err := c.lookup(ctx)
	if err != nil {
		slog.Warn("ip lookup failed", "error", err)
		return model.UnknownIP
	}
	return ip
}

func (c *Client) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if body.IP == "" {
		return "", fmt.Errorf("empty ip in response")
	}
	return body.IP, nil
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	startPath  = "/api/v1/training/start"
	streamPath = "/ws/training/"
	userAgent  = "trainwatch/1"
)

// ErrStartFailed wraps every failure of StartJob so callers can treat network
// errors and non-2xx responses uniformly.
var ErrStartFailed = errors.New("failed to start training job")

// Client talks to the training API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a Client for the API rooted at baseURL (e.g.
// "http://localhost:8000"). A zero timeout means no request deadline.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", baseURL)
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type startResponse struct {
	JobID string `json:"job_id"`
}

// StartJob asks the server to create a new job and returns its identifier.
func (c *Client) StartJob(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+startPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrStartFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrStartFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: API returned %d: %s", ErrStartFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out startResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", ErrStartFailed, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: response has no job_id", ErrStartFailed)
	}
	return out.JobID, nil
}

// StreamURL returns the push-channel URL for jobID, switching the scheme to
// ws or wss to match the API base.
func (c *Client) StreamURL(jobID string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + streamPath + url.PathEscape(jobID)
	return u.String()
}

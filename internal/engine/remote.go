package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ActivityReport is the authoritative answer for "what did this account get
// accepted today".
type ActivityReport struct {
	Count int      `json:"count"`
	Slugs []string `json:"slugs"`
}

// DailyChallenge identifies today's featured challenge.
type DailyChallenge struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// RemoteClient is the read-only window onto the tracked service. Both queries
// use the user's ambient authenticated session; an auth rejection surfaces as
// ErrAuthRequired, every other failure as a plain error.
type RemoteClient interface {
	FetchTodayActivity(ctx context.Context, username string) (ActivityReport, error)
	FetchDailyChallenge(ctx context.Context) (*DailyChallenge, error)
}

type RemoteClientOptions struct {
	BaseURL       string
	SessionCookie string
	UserAgent     string
	HTTPClient    *http.Client
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
}

type HTTPRemoteClient struct {
	baseURL       string
	sessionCookie string
	userAgent     string
	httpClient    *http.Client
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewHTTPRemoteClient(opts RemoteClientOptions) *HTTPRemoteClient {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://leetcode.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &HTTPRemoteClient{
		baseURL:       baseURL,
		sessionCookie: strings.TrimSpace(opts.SessionCookie),
		userAgent:     strings.TrimSpace(opts.UserAgent),
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
	}
}

func (c *HTTPRemoteClient) FetchTodayActivity(ctx context.Context, username string) (ActivityReport, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return ActivityReport{}, ErrNotConfigured
	}
	var report ActivityReport
	path := "/api/activity/today?username=" + url.QueryEscape(username)
	if err := c.getJSON(ctx, path, &report); err != nil {
		return ActivityReport{}, err
	}
	if report.Count < len(report.Slugs) {
		report.Count = len(report.Slugs)
	}
	return report, nil
}

func (c *HTTPRemoteClient) FetchDailyChallenge(ctx context.Context) (*DailyChallenge, error) {
	var challenge DailyChallenge
	if err := c.getJSON(ctx, "/api/daily-challenge", &challenge); err != nil {
		return nil, err
	}
	if strings.TrimSpace(challenge.Slug) == "" {
		return nil, nil
	}
	return &challenge, nil
}

func (c *HTTPRemoteClient) getJSON(ctx context.Context, path string, out any) error {
	if c == nil {
		return fmt.Errorf("remote client is nil")
	}
	target := c.baseURL + path

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if c.sessionCookie != "" {
			req.Header.Set("Cookie", c.sessionCookie)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			return json.Unmarshal(body, out)
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrAuthRequired
		case (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries:
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
		default:
			return fmt.Errorf("remote query failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}
}

func (c *HTTPRemoteClient) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client for the Aladhan prayer-timings API.
package aladhan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.aladhan.com"

	// calculation method 2 is ISNA, what the reader has always used
	defaultMethod = 2
)

type Client struct {
	baseURL string
	method  int
	http    *http.Client
}

// NewClient builds a timings client. baseURL may be empty for the
// public API; tests point it at an httptest server.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		method:  defaultMethod,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// timingsResponse mirrors only the fields we read; the API sends far
// more and adds fields without notice, so timings stays an open map.
type timingsResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

// Timings fetches the raw timetable for the given coordinates and date.
// No retry: a failed fetch surfaces immediately and the caller keeps its
// last-known-good schedule.
func (c *Client) Timings(ctx context.Context, lat, lon float64, date time.Time) (map[string]string, error) {
	url := fmt.Sprintf("%s/v1/timings/%s?latitude=%f&longitude=%f&method=%d",
		c.baseURL, date.Format("02-01-2006"), lat, lon, c.method)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aladhan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aladhan returned status %d", resp.StatusCode)
	}

	var body timingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode aladhan response: %w", err)
	}
	if body.Code != http.StatusOK {
		return nil, fmt.Errorf("aladhan returned code %d", body.Code)
	}
	if len(body.Data.Timings) == 0 {
		return nil, fmt.Errorf("aladhan response carried no timings")
	}

	return body.Data.Timings, nil
}

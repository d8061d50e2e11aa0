// Reverse geocoding against Nominatim, display text only.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim's usage policy requires an identifying User-Agent.
const userAgent = "MaosQuran-Miqat/1.0"

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type reverseResponse struct {
	Address struct {
		Village string `json:"village"`
		Town    string `json:"town"`
		City    string `json:"city"`
		State   string `json:"state"`
	} `json:"address"`
}

// LocationName resolves coordinates to readable place text. Best effort:
// on any failure it returns the coordinates formatted as text and no
// error, since display text must never block schedule computation.
func (c *Client) LocationName(ctx context.Context, lat, lon float64) string {
	fallback := fmt.Sprintf("%.4f, %.4f", lat, lon)

	url := fmt.Sprintf("%s/reverse?format=json&lat=%f&lon=%f&accept-language=id", c.baseURL, lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("reverse geocoding failed")
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("reverse geocoding returned non-200")
		return fallback
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Msg("could not decode reverse geocoding response")
		return fallback
	}

	parts := []string{body.Address.Village, body.Address.Town, body.Address.City, body.Address.State}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return fallback
	}
	return strings.Join(kept, ", ")
}

// Package geo wraps the external IP-intelligence service. Lookups are
// bounded by a short timeout; failures degrade to a tagged failure value
// that callers must treat as "unknown", never as benign or malicious.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 3 * time.Second

// vpnOrgPattern flags hosting/VPN-flavoured organizations. Heuristic only.
var vpnOrgPattern = regexp.MustCompile(`(?i)vpn|proxy|hosting|cloud|aws|amazon|google`)

// Client is the GeoIntel adapter capability.
type Client interface {
	Lookup(ctx context.Context, ip string) (*models.GeoIntel, error)
}

// HTTPClient queries an ipapi.co-compatible JSON endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a GeoIntel client against baseURL
// (e.g. "https://ipapi.co"). A zero timeout uses DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// lookupResponse mirrors the upstream JSON shape.
type lookupResponse struct {
	ASN         string `json:"asn"`
	Org         string `json:"org"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Region      string `json:"region"`
}

// Lookup resolves intelligence for ip. The returned error covers transport
// failures, timeouts, and non-2xx responses; callers substitute
// FailureIntel at the call site so the degradation is explicit.
func (c *HTTPClient) Lookup(ctx context.Context, ip string) (*models.GeoIntel, error) {
	url := fmt.Sprintf("%s/%s/json/", c.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}

	return &models.GeoIntel{
		IP:      ip,
		ASN:     body.ASN,
		Org:     body.Org,
		Country: body.CountryName,
		City:    body.City,
		Region:  body.Region,
		VPNLike: vpnOrgPattern.MatchString(body.Org),
	}, nil
}

// FailureIntel is the tagged failure value recorded when a lookup degrades.
func FailureIntel(ip string) *models.GeoIntel {
	return &models.GeoIntel{IP: ip, Error: "geo_lookup_failed"}
}

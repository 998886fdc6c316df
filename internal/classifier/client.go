// Package classifier wraps the external ML payload classifier. The service
// is allowed to be down: callers substitute Fallback() on any error, an
// explicit fail-open-to-benign policy so a transient outage only reduces
// how often the deception traps fire.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chameleon-systems/chameleon/internal/models"
)

// DefaultTimeout bounds a single classification call.
const DefaultTimeout = 4 * time.Second

// LabelInjected is the label that fires the injection-hint trap.
const LabelInjected = "injected"

// LabelNormal is the benign label, also used by the fallback and the
// admin-username override.
const LabelNormal = "normal"

// Client is the PayloadClassifier adapter capability.
type Client interface {
	Classify(ctx context.Context, payload string) (models.Classification, error)
}

// HTTPClient posts payloads to the ML prediction endpoint.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient creates a classifier client for url
// (e.g. "http://127.0.0.1:8000/predict"). A zero timeout uses DefaultTimeout.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Classify sends the payload for labelling. Any transport error, timeout,
// or malformed response surfaces as an error; the caller decides to fall
// back, not this client.
func (c *HTTPClient) Classify(ctx context.Context, payload string) (models.Classification, error) {
	body, err := json.Marshal(map[string]string{"query": payload})
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Classification{}, fmt.Errorf("classify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Classification{}, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var result models.Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Classification{}, fmt.Errorf("failed to decode classify response: %w", err)
	}

	return result, nil
}

// Fallback is the fixed substitution applied when the classifier is
// unreachable: benign with low confidence.
func Fallback() models.Classification {
	return models.Classification{Label: LabelNormal, Confidence: 0.4}
}

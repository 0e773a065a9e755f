package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"SoccerSentiment/internal/domain"
	"SoccerSentiment/internal/ports"
)

// Client talks to the hosted sentiment endpoint: text in, {label, score} out.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SentimentClassifier = (*Client)(nil)

// NewClient creates a reusable HTTP client for the endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Predict sends the comment body for classification. All failures, including
// an out-of-set label in the response, surface as InferenceError.
func (c *Client) Predict(ctx context.Context, text string) (domain.Prediction, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var prediction domain.Prediction
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("decode response: %w", err)}
	}

	if !prediction.Label.Valid() {
		return domain.Prediction{}, &domain.InferenceError{Err: fmt.Errorf("unknown label %q", prediction.Label)}
	}

	return prediction, nil
}

package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Result is the classifier's verdict on one piece of text.
type Result struct {
	IsSafe bool
	Raw    string
}

// Client calls the generative content-safety service. The service is
// prompted as a binary SAFE/UNSAFE classifier over bullying, harassment
// and toxicity.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, every text classifies as safe; used
// for dev environments without a classifier.
func New(baseURL, apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

const promptTemplate = `Analyze this text for bullying, harassment, or severe toxicity. Respond ONLY with "SAFE" or "UNSAFE". Text: %q`

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Classify asks the service for a verdict. A transport or service failure
// returns an error; the caller decides whether that blocks or allows.
func (c *Client) Classify(ctx context.Context, text string) (*Result, error) {
	if c.Skip {
		return &Result{IsSafe: true, Raw: "SAFE"}, nil
	}

	body, err := json.Marshal(generateRequest{Prompt: fmt.Sprintf(promptTemplate, text)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("classifier response decode: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("classifier error: %s", out.Error)
	}

	return parseVerdict(out.Text), nil
}

// parseVerdict interprets the model's free-text reply. An unexpected reply
// counts as safe; only an explicit UNSAFE blocks.
func parseVerdict(text string) *Result {
	verdict := strings.ToUpper(strings.TrimSpace(text))
	if strings.Contains(verdict, "UNSAFE") {
		return &Result{IsSafe: false, Raw: verdict}
	}
	return &Result{IsSafe: true, Raw: verdict}
}

// Health checks the classifier endpoint.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier health status %d", resp.StatusCode)
	}
	return nil
}

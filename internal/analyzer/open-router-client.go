package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BerylCAtieno/unitydesk-api/internal/utils"
	"golang.org/x/time/rate"
)

// Completer runs a structured completion and decodes the validated JSON into out.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string, schema *Schema, out any) error
}

type Options struct {
	APIURL            string
	APIKey            string
	Model             string
	VisionModel       string
	Timeout           time.Duration
	RequestsPerSecond float64
	Referer           string
}

// Client talks to an OpenAI-compatible chat completions endpoint (OpenRouter by default).
type Client struct {
	opts    Options
	logger  *utils.Logger
	client  *http.Client
	limiter *rate.Limiter
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// Message content is either a string or a slice of ContentPart.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

type choice struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func NewClient(opts Options, logger *utils.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.VisionModel == "" {
		opts.VisionModel = opts.Model
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		logger:  logger,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Client) CompleteJSON(ctx context.Context, prompt string, schema *Schema, out any) error {
	content, err := c.chat(ctx, c.opts.Model, []Message{
		{Role: "system", Content: "You are a civic grievance assistant. Respond ONLY with a valid JSON object (no markdown, no code blocks)."},
		{Role: "user", Content: prompt},
	}, true)
	if err != nil {
		return err
	}

	if err := ParseStructured(content, schema, out); err != nil {
		c.logger.Error("Failed to parse model response", "schema", schema.Name(), "content", content)
		return err
	}
	return nil
}

// chat sends one chat completion and returns the first choice's content.
func (c *Client) chat(ctx context.Context, model string, messages []Message, jsonMode bool) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	reqBody := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.2,
	}
	if jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.opts.Referer != "" {
		req.Header.Set("HTTP-Referer", c.opts.Referer)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Model call finished", "model", model, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Model API error", "status", resp.StatusCode, "body", string(body))
		return "", &APIError{StatusCode: resp.StatusCode}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("model API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// APIError is a non-200 answer from a hosted model endpoint.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API returned status %d", e.StatusCode)
}

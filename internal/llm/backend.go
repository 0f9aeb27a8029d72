package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 2
	initialBackoff = 500 * time.Millisecond
)

// Backend error codes reported by the hosted completion endpoint.
const (
	CodeInternal    = "internal"
	CodeUnavailable = "unavailable"
	CodeNotFound    = "not-found"
)

// BackendError is a structured error from the hosted AI endpoint.
type BackendError struct {
	Code    string
	Message string
	Status  int
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend HTTP %d: %s", e.Status, e.Message)
}

// Backend talks to the hosted AI service (chat completion, TTS, vision).
type Backend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBackend creates a client for the hosted AI endpoint.
func NewBackend(baseURL, apiKey string) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type backendMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionPayload struct {
	Model          string           `json:"model,omitempty"`
	Messages       []backendMessage `json:"messages"`
	ResponseFormat string           `json:"response_format,omitempty"`
	Temperature    *float32         `json:"temperature,omitempty"`
	MaxTokens      int              `json:"max_tokens,omitempty"`
}

type contentResponse struct {
	Content string `json:"content"`
}

type speechPayload struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

type speechResponse struct {
	Base64Audio string `json:"base64Audio"`
}

type visionPayload struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

// Complete sends a chat completion request to the hosted endpoint.
func (b *Backend) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := []backendMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, backendMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, backendMessage{Role: "user", Content: req.UserPrompt})

	payload := completionPayload{
		Model:          req.Model,
		Messages:       messages,
		ResponseFormat: req.ResponseFormat,
		MaxTokens:      req.MaxTokens,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		payload.Temperature = &t
	}

	var out contentResponse
	if err := b.post(ctx, "/api/ai/chat-completion", payload, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// Speak converts text to speech via the hosted endpoint. Returns base64 MP3.
func (b *Backend) Speak(ctx context.Context, text, voice string, speed float64) (string, error) {
	var out speechResponse
	err := b.post(ctx, "/api/ai/text-to-speech", speechPayload{Text: text, Voice: voice, Speed: speed}, &out)
	if err != nil {
		return "", err
	}
	return out.Base64Audio, nil
}

// DescribeImage asks the hosted vision model about an image.
func (b *Backend) DescribeImage(ctx context.Context, imageURL, prompt string) (string, error) {
	var out contentResponse
	err := b.post(ctx, "/api/ai/analyze-image", visionPayload{ImageURL: imageURL, Prompt: prompt}, &out)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

// Ping verifies the hosted endpoint is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	b.setHeaders(req)
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health check: HTTP %d", resp.StatusCode)
	}
	return nil
}

// post sends a JSON request, retrying transient failures with exponential
// backoff before reporting the error to the caller.
func (b *Backend) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = b.doPost(ctx, path, body, out)
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) || attempt == maxRetries {
			return lastErr
		}
		backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (b *Backend) doPost(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	b.setHeaders(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeBackendError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (b *Backend) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
}

func decodeBackendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		return &BackendError{
			Code:    strings.TrimPrefix(envelope.Error.Code, "functions/"),
			Message: envelope.Error.Message,
			Status:  resp.StatusCode,
		}
	}
	return &BackendError{Message: strings.TrimSpace(string(raw)), Status: resp.StatusCode}
}

// shouldRetry reports whether an error looks transient enough to retry the
// primary endpoint before giving up.
func shouldRetry(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusTooManyRequests || be.Status == http.StatusServiceUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// fallbackEligible reports whether a primary failure should trigger the
// direct provider fallback. Only a narrow signature qualifies; anything else
// propagates unchanged.
func fallbackEligible(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		if be.Code == CodeInternal || be.Code == CodeUnavailable {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection error") || strings.Contains(msg, "cannot reach openai")
}

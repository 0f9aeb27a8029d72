package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// ResponseFormatJSON forces the model to return a JSON object.
const ResponseFormatJSON = "json_object"

const (
	defaultModel = "gpt-4o-mini"
	ttsModel     = "tts-1"
	ttsMaxInput  = 4096
)

// fallbackAlternates are tried after the preferred model when the direct
// provider path is used.
var fallbackAlternates = []string{"gpt-4o-mini", "gpt-3.5-turbo"}

// CompletionRequest describes a single system+user prompt exchange.
type CompletionRequest struct {
	Model          string
	SystemPrompt   string
	UserPrompt     string
	ResponseFormat string // ResponseFormatJSON or empty
	Temperature    float32
	MaxTokens      int
}

// CompletionResponse holds the model's reply.
type CompletionResponse struct {
	Content string
}

// Client sends completion requests to the hosted backend and falls back to a
// direct provider call when the backend fails with a known transient
// signature and a fallback key is configured.
type Client struct {
	backend *Backend
	direct  *openai.Client // nil when no fallback key is configured
	model   string
	voice   string
}

// New creates an LLM client. fallbackKey may be empty, which disables the
// direct provider path entirely. fallbackBaseURL overrides the direct
// provider endpoint; leave it empty for the provider default.
func New(backendURL, backendKey, fallbackKey, fallbackBaseURL, modelName, voice string) *Client {
	if modelName == "" {
		modelName = defaultModel
	}
	c := &Client{
		backend: NewBackend(backendURL, backendKey),
		model:   modelName,
		voice:   voice,
	}
	if fallbackKey != "" {
		config := openai.DefaultConfig(fallbackKey)
		if fallbackBaseURL != "" {
			config.BaseURL = fallbackBaseURL
		}
		c.direct = openai.NewClientWithConfig(config)
	}
	return c
}

// Ping verifies the backend endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Complete sends a prompt to the backend, falling back to the direct
// provider on a narrow error signature. Errors outside that signature
// propagate unchanged.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	content, err := c.backend.Complete(ctx, req)
	if err == nil {
		return CompletionResponse{Content: content}, nil
	}
	if c.direct == nil || !fallbackEligible(err) {
		return CompletionResponse{}, err
	}

	slog.Warn("backend completion failed, trying direct provider", "error", err)
	lastErr := err
	for _, m := range modelChain(req.Model) {
		content, derr := c.directComplete(ctx, m, req)
		if derr != nil {
			lastErr = derr
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		return CompletionResponse{Content: content}, nil
	}
	return CompletionResponse{}, lastErr
}

// Speak converts text to speech, returning base64-encoded MP3 audio. Same
// primary/fallback shape as Complete.
func (c *Client) Speak(ctx context.Context, text string, speed float64) (string, error) {
	text = truncateRunes(text, ttsMaxInput)
	speed = clampSpeed(speed)

	audio, err := c.backend.Speak(ctx, text, c.voice, speed)
	if err == nil {
		return audio, nil
	}
	if c.direct == nil || !fallbackEligible(err) {
		return "", err
	}

	slog.Warn("backend TTS failed, trying direct provider", "error", err)
	resp, derr := c.direct.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          ttsModel,
		Voice:          openai.SpeechVoice(c.voice),
		Input:          text,
		Speed:          speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if derr != nil {
		return "", err
	}
	defer resp.Close()
	raw, rerr := io.ReadAll(resp)
	if rerr != nil {
		return "", fmt.Errorf("reading speech response: %w", rerr)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DescribeImage asks a vision model about an image (URL or data URI).
func (c *Client) DescribeImage(ctx context.Context, imageRef, prompt string) (string, error) {
	content, err := c.backend.DescribeImage(ctx, imageRef, prompt)
	if err == nil {
		return content, nil
	}
	if c.direct == nil || !fallbackEligible(err) {
		return "", err
	}

	slog.Warn("backend vision failed, trying direct provider", "error", err)
	resp, derr := c.direct.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4o,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageRef},
					},
				},
			},
		},
	})
	if derr != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) directComplete(ctx context.Context, model string, req CompletionRequest) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat == ResponseFormatJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.direct.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("direct completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("direct completion (%s): no choices", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// modelChain returns the preferred model followed by the hardcoded
// alternates, deduplicated, preserving order.
func modelChain(preferred string) []string {
	chain := []string{preferred}
	for _, m := range fallbackAlternates {
		if m != preferred {
			chain = append(chain, m)
		}
	}
	return chain
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func clampSpeed(speed float64) float64 {
	if speed == 0 {
		return 1.0
	}
	if speed < 0.25 {
		return 0.25
	}
	if speed > 4.0 {
		return 4.0
	}
	return speed
}

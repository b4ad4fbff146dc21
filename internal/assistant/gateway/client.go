package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/motorchat-core/server/internal/assistant/model"
	errx "github.com/motorchat-core/server/internal/core/error"
)

// GenerationClient talks to an OpenAI-compatible chat-completions endpoint.
// It performs exactly one attempt per call; retry discipline belongs to the
// circuit breaker, not the transport.
type GenerationClient struct {
	cfg     model.GenerationModelConfig
	timeout time.Duration
	stop    []string
	client  *http.Client
}

func NewGenerationClient(cfg model.GenerationModelConfig) *GenerationClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var stop []string
	for _, s := range strings.Split(cfg.StopSequences, ",") {
		if s = strings.TrimSpace(s); s != "" {
			stop = append(stop, s)
		}
	}

	return &GenerationClient{
		cfg:     cfg,
		timeout: timeout,
		stop:    stop,
		// the per-call context carries the deadline
		client: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model             string        `json:"model"`
	Messages          []chatMessage `json:"messages"`
	Temperature       float32       `json:"temperature"`
	TopP              float32       `json:"top_p"`
	MaxTokens         int           `json:"max_tokens"`
	RepetitionPenalty float32       `json:"repetition_penalty,omitempty"`
	Stop              []string      `json:"stop,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends the prompt and returns the first choice's raw content plus
// total tokens used. The upstream deadline is detached from the caller's
// cancellation: an answer worth caching should finish generating even if the
// client that asked for it has already disconnected.
func (c *GenerationClient) Complete(ctx context.Context, msgs []*schema.Message) (string, int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	payload := chatCompletionRequest{
		Model:             c.cfg.Model,
		Messages:          make([]chatMessage, 0, len(msgs)),
		Temperature:       c.cfg.Temperature,
		TopP:              c.cfg.TopP,
		MaxTokens:         c.cfg.MaxTokens,
		RepetitionPenalty: c.cfg.RepetitionPenalty,
		Stop:              c.stop,
	}
	for _, m := range msgs {
		if m == nil {
			continue
		}
		payload.Messages = append(payload.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", 0, fmt.Errorf("marshal completion request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, errx.New(err, http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, errx.New(err, http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, errx.New(
			fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, truncateBody(raw)),
			http.StatusBadGateway, errx.UpstreamErrorMessage,
		)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, errx.New(fmt.Errorf("decode completion response: %w", err), http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, errx.New(fmt.Errorf("completion response has no choices"), http.StatusBadGateway, errx.UpstreamErrorMessage)
	}

	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}

// Health probes the upstream liveness endpoint.
func (c *GenerationClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errx.New(err, http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errx.New(fmt.Errorf("health endpoint returned %d", resp.StatusCode), http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	return nil
}

// Info returns upstream model metadata as a loose map.
func (c *GenerationClient) Info(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+"/info", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errx.New(err, http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errx.New(fmt.Errorf("info endpoint returned %d", resp.StatusCode), http.StatusBadGateway, errx.UpstreamErrorMessage)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errx.New(fmt.Errorf("decode info response: %w", err), http.StatusBadGateway, errx.UpstreamErrorMessage)
	}
	return info, nil
}

func truncateBody(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}

// Package embeddings turns text into fixed-length vectors via an
// OpenAI-compatible embeddings endpoint. Provider failures degrade to
// zero-vectors so retrieval loses its semantic signal instead of crashing
// the pipeline.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/motorchat-core/server/internal/assistant/model"
	logx "github.com/motorchat-core/server/pkg/logger"
)

type Client struct {
	cfg    model.EmbeddingConfig
	client *http.Client
}

func NewClient(cfg model.EmbeddingConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int {
	return c.cfg.Dimensions
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the vector for a single text. Never errors; provider
// failure yields a zero-vector.
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	vectors := c.EmbedBatch(ctx, []string{text})
	return vectors[0]
}

// EmbedBatch returns one vector per input text, order-preserving: result i
// always corresponds to texts[i]. On provider failure every slot degrades
// to a zero-vector of the configured dimensionality.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors, err := c.embed(ctx, texts)
	if err != nil {
		logx.Warn().Err(err).Int("texts", len(texts)).Msg("embedding provider failed, degrading to zero-vectors")
		return c.zeroVectors(len(texts))
	}
	return vectors
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint status %d: %s", resp.StatusCode, snippet)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(decoded.Data), len(texts))
	}

	// The API indexes each vector; order by index so result i maps to input i.
	sort.Slice(decoded.Data, func(i, j int) bool {
		return decoded.Data[i].Index < decoded.Data[j].Index
	})

	vectors := make([][]float32, len(texts))
	for i, d := range decoded.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (c *Client) zeroVectors(n int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, c.cfg.Dimensions)
	}
	return vectors
}

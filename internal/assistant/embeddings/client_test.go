package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorchat-core/server/internal/assistant/model"
)

func newTestClient(baseURL string) *Client {
	return NewClient(model.EmbeddingConfig{
		BaseURL:        baseURL,
		Model:          "test-embed",
		Dimensions:     4,
		TimeoutSeconds: 2,
	})
}

func TestEmbedBatchOrderPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Input, 3)

		// Reply out of order; the client must reorder by index.
		resp := map[string]any{
			"data": []map[string]any{
				{"index": 2, "embedding": []float32{3, 3, 3, 3}},
				{"index": 0, "embedding": []float32{1, 1, 1, 1}},
				{"index": 1, "embedding": []float32{2, 2, 2, 2}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	vectors := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})

	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1, 1, 1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 2, 2, 2}, vectors[1])
	assert.Equal(t, []float32{3, 3, 3, 3}, vectors[2])
}

func TestEmbedBatchDegradesToZeroVectors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"data": []map[string]any{{"index": 0, "embedding": []float32{1, 2, 3, 4}}},
				})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestClient(srv.URL)
			vectors := c.EmbedBatch(context.Background(), []string{"a", "b"})

			require.Len(t, vectors, 2)
			assert.Equal(t, []float32{0, 0, 0, 0}, vectors[0])
			assert.Equal(t, []float32{0, 0, 0, 0}, vectors[1])
		})
	}
}

func TestEmbedUnreachableProvider(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	vec := c.Embed(context.Background(), "hello")

	assert.Equal(t, []float32{0, 0, 0, 0}, vec)
}

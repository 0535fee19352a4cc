package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neu-planner/backend/pkg/circuitbreaker"
)

func newTestServer(t *testing.T, status int, content string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
			"usage":   map[string]int{"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, http.StatusOK, "statistics, databases", &hits)

	client := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-test"})
	resp, err := client.Complete(context.Background(), CompletionRequest{
		UserPrompt: "expand business",
		Purpose:    "expand",
		Timeout:    5 * time.Second,
	})

	require.NoError(t, err)
	assert.Equal(t, "statistics, databases", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCompleteWithoutKeyIsUnavailable(t *testing.T) {
	client := NewClient(Config{Model: "gpt-test"})

	_, err := client.Complete(context.Background(), CompletionRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCompleteOpensBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, http.StatusInternalServerError, "", &hits)

	client := NewClient(Config{
		APIKey:           "test",
		BaseURL:          srv.URL + "/v1",
		Model:            "gpt-test",
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.Complete(ctx, CompletionRequest{UserPrompt: "x"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := client.Complete(ctx, CompletionRequest{UserPrompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, circuitbreaker.StateOpen, client.BreakerState())
	assert.Equal(t, int32(2), hits.Load())
}

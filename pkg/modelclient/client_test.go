package modelclient_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/distill/internal/types"
	"github.com/xhad/distill/pkg/modelclient"
)

func newTestClient(t *testing.T, baseURL string) *modelclient.Client {
	t.Helper()
	client, err := modelclient.NewWithConfig(modelclient.ClientConfig{
		BaseURL:        baseURL,
		Model:          "test-model",
		APIKey:         "test-key",
		Temperature:    0.3,
		MaxRetries:     2,
		RetryBaseDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func successBody(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"content":%q}}],"usage":{"prompt_tokens":5,"completion_tokens":7}}`, content)
}

func TestClient_Success(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, successBody("extracted clause"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	completion, err := client.Complete(context.Background(), []types.Message{
		{Role: "system", Content: "extract clauses"},
		{Role: "user", Content: "some document text"},
	})

	require.NoError(t, err)
	assert.Equal(t, "extracted clause", completion.Content)
	assert.Equal(t, 5, completion.Usage.PromptTokens)
	assert.Equal(t, 7, completion.Usage.CompletionTokens)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetryAfterRateLimit(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
			return
		}
		fmt.Fprint(w, successBody("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	start := time.Now()
	completion, err := client.Complete(context.Background(), []types.Message{
		{Role: "user", Content: "hello"},
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "ok", completion.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "one logical call with one retry")
	assert.GreaterOrEqual(t, elapsed, time.Second, "client must honor Retry-After")
}

func TestClient_BackoffOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"upstream blew up"}}`)
			return
		}
		fmt.Fprint(w, successBody("recovered"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	completion, err := client.Complete(context.Background(), []types.Message{
		{Role: "user", Content: "hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", completion.Content)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_FatalOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad prompt"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), []types.Message{
		{Role: "user", Content: "hello"},
	})

	var fatal *modelclient.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, http.StatusBadRequest, fatal.Status)
	assert.Contains(t, fatal.Message, "bad prompt")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors must not be retried")
}

func TestClient_RetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Complete(context.Background(), []types.Message{
		{Role: "user", Content: "hello"},
	})

	var fatal *modelclient.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Contains(t, fatal.Message, "retries exhausted")
}

func TestNewWithConfig_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := modelclient.NewWithConfig(modelclient.ClientConfig{
		BaseURL: "http://localhost:9999",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, modelclient.IsRetryable(&modelclient.RateLimitError{}))
	assert.True(t, modelclient.IsRetryable(&modelclient.TransientError{Status: 502}))
	assert.False(t, modelclient.IsRetryable(&modelclient.FatalError{Status: 400}))
	assert.False(t, modelclient.IsRetryable(errors.New("plain")))
}

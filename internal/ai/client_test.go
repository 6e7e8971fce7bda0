package ai_test

import (
	"context"
	"encoding/json"
	"github.com/myrjola/fsvalidator/internal/ai"
	"github.com/myrjola/fsvalidator/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeOpenAI serves /v1/chat/completions with handler and counts the requests it receives.
func fakeOpenAI(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func newClient(t *testing.T, apiKey string, baseURL string) *ai.Client {
	t.Helper()
	return ai.NewClient(ai.Config{
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     "",
		MaxTokens: 0,
		Timeout:   5 * time.Second,
	}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
}

func TestClient_Analyze(t *testing.T) {
	ctx := context.Background()

	t.Run("answer", func(t *testing.T) {
		var received openai.ChatCompletionRequest
		server, calls := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[` +
				`{"index":0,"message":{"role":"assistant","content":"Yes, the reconciliation is disclosed."},` +
				`"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
		})
		client := newClient(t, "test-key", server.URL+"/v1")
		require.True(t, client.Configured())

		answer, err := client.Analyze(ctx, "Equity shares: 1000", "Is the reconciliation disclosed?")
		require.NoError(t, err)
		require.Equal(t, "Yes, the reconciliation is disclosed.", answer)
		require.Equal(t, int32(1), calls.Load())
		require.Equal(t, ai.DefaultModel, received.Model)
		require.Equal(t, ai.DefaultMaxTokens, received.MaxTokens)
		require.Len(t, received.Messages, 2)
		require.Equal(t, openai.ChatMessageRoleSystem, received.Messages[0].Role)
		require.Contains(t, received.Messages[1].Content, "Is the reconciliation disclosed?")
		require.Contains(t, received.Messages[1].Content, "Equity shares: 1000")
	})

	t.Run("not configured", func(t *testing.T) {
		server, calls := fakeOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		client := newClient(t, "", server.URL+"/v1")
		require.False(t, client.Configured())

		_, err := client.Analyze(ctx, "text", "question")
		require.ErrorIs(t, err, ai.ErrNotConfigured)
		require.Equal(t, int32(0), calls.Load())
	})

	errorTests := []struct {
		name   string
		status int
		body   string
		kind   ai.Kind
	}{
		{
			name:   "invalid key",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			kind:   ai.KindAuthentication,
		},
		{
			name:   "quota exceeded",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`,
			kind:   ai.KindQuota,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"The server had an error","type":"server_error"}}`,
			kind:   ai.KindRemote,
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"id":"1","object":"chat.completion","choices":[]}`,
			kind:   ai.KindEmpty,
		},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := fakeOpenAI(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client := newClient(t, "test-key", server.URL+"/v1")

			_, err := client.Analyze(ctx, "text", "question")
			var aiErr *ai.Error
			require.ErrorAs(t, err, &aiErr)
			require.Equal(t, tt.kind, aiErr.Kind)
			require.Equal(t, int32(1), calls.Load(), "no retries")
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()
		client := newClient(t, "test-key", url+"/v1")

		_, err := client.Analyze(ctx, "text", "question")
		var aiErr *ai.Error
		require.ErrorAs(t, err, &aiErr)
		require.Equal(t, ai.KindNetwork, aiErr.Kind)
	})
}

func TestBuildRequest(t *testing.T) {
	text := strings.Repeat("Revenue 100. ", 1000)
	first, err := json.Marshal(ai.BuildRequest("gpt-4o-mini", 1500, text, "Is revenue disclosed?"))
	require.NoError(t, err)
	second, err := json.Marshal(ai.BuildRequest("gpt-4o-mini", 1500, text, "Is revenue disclosed?"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	req := ai.BuildRequest("gpt-4o-mini", 1500, "Total assets 42", "Is revenue disclosed?")
	require.Equal(t, "Analyze this financial statement text and answer this question: Is revenue disclosed?"+
		"\n\nFinancial Statement Content: Total assets 42", req.Messages[1].Content)
}

func TestBuildRequest_truncatesDocument(t *testing.T) {
	text := strings.Repeat("é", ai.DocumentCharLimit) + "TAIL"
	req := ai.BuildRequest("gpt-4o-mini", 1500, text, "q")
	require.NotContains(t, req.Messages[1].Content, "TAIL")
	require.True(t, strings.HasSuffix(req.Messages[1].Content, strings.Repeat("é", 10)))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", ai.Truncate("abc", 5))
	require.Equal(t, "abc", ai.Truncate("abcdef", 3))
	require.Equal(t, "äö", ai.Truncate("äöü", 2))
	require.Empty(t, ai.Truncate("abc", 0))
}

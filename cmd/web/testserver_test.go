package main

import (
	"context"
	"github.com/myrjola/fsvalidator/internal/e2etest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

const fakeAnswer = "The reconciliation is disclosed in note 12."

// fakeOpenAI stands in for the chat completion API and counts the requests it receives.
type fakeOpenAI struct {
	server *httptest.Server
	calls  atomic.Int32
	status int
	answer string
	// received and release are set for held fakes, see newHeldOpenAI.
	received    chan struct{}
	release     chan struct{}
	releaseOnce sync.Once
}

// newFakeOpenAI answers every request with status. Successful responses contain fakeAnswer.
func newFakeOpenAI(t *testing.T, status int) *fakeOpenAI {
	t.Helper()
	return startFakeOpenAI(t, &fakeOpenAI{
		server:      nil,
		calls:       atomic.Int32{},
		status:      status,
		answer:      fakeAnswer,
		received:    nil,
		release:     nil,
		releaseOnce: sync.Once{},
	})
}

// newHeldOpenAI signals every request on received and answers only after release is closed.
func newHeldOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	fake := startFakeOpenAI(t, &fakeOpenAI{
		server:      nil,
		calls:       atomic.Int32{},
		status:      http.StatusOK,
		answer:      fakeAnswer,
		received:    make(chan struct{}, 1),
		release:     make(chan struct{}),
		releaseOnce: sync.Once{},
	})
	t.Cleanup(fake.answerHeld)
	return fake
}

// answerHeld lets the held requests and all later ones through.
func (f *fakeOpenAI) answerHeld() {
	f.releaseOnce.Do(func() { close(f.release) })
}

func startFakeOpenAI(t *testing.T, fake *fakeOpenAI) *fakeOpenAI {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		fake.calls.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		if fake.release != nil {
			select {
			case fake.received <- struct{}{}:
			default:
			}
			<-fake.release
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fake.status)
		if fake.status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,` +
			`"message":{"role":"assistant","content":"` + fake.answer + `"},"finish_reason":"stop"}]}`))
	})
	fake.server = httptest.NewServer(mux)
	t.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeOpenAI) lookupEnv(extra map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if value, ok := extra[key]; ok {
			return value, true
		}
		switch key {
		case "FSV_ADDR":
			return "localhost:0", true
		case "OPENAI_API_KEY":
			return "test-key", true
		case "OPENAI_BASE_URL":
			return f.server.URL + "/v1", true
		default:
			return "", false
		}
	}
}

// startServer runs the application until the test ends.
func startServer(t *testing.T, lookupEnv func(string) (string, bool)) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, lookupEnv, run)
	require.NoError(t, err)
	return server
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.NoError(t, resp.Body.Close())
}

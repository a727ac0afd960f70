package ollama

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/internal/llm"
)

func TestChatParsesResponse(t *testing.T) {
	t.Parallel()

	p := NewProvider("local", "http://mock", 5*time.Second)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/chat", r.URL.Path)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     make(http.Header),
				Body: io.NopCloser(strings.NewReader(`{
					"message": {"role": "assistant", "content": "pong"}
				}`)),
			}, nil
		}),
	}

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "llama3",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "ping"}},
	})
	require.NoError(t, err)
	require.Equal(t, "pong", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
}

func TestChatSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	p := NewProvider("local", "http://mock", 0)
	p.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Header:     make(http.Header),
				Body:       io.NopCloser(strings.NewReader("boom")),
			}, nil
		}),
	}

	_, err := p.Chat(context.Background(), llm.ChatRequest{Model: "llama3"})
	require.ErrorContains(t, err, "500")
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

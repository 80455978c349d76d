package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/newstracker/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAICompatClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAICompat(config.GroqConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "test-model",
	})
}

func TestOpenAICompat_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"flooding reported downtown"}}]}`))
	})

	text, err := client.Complete(context.Background(), "system", "what is happening?")
	require.NoError(t, err)
	assert.Equal(t, "flooding reported downtown", text)
}

func TestOpenAICompat_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "system", "query")
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestOpenAICompat_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), "system", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, IsRateLimited(err))
}

func TestOpenAICompat_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.Complete(context.Background(), "system", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenAICompat_NoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := client.Complete(context.Background(), "system", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klam-proxy/anthropic-openai-gateway/config"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/applog"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

// fakeClient is a stub upstream.Client driven directly by test cases,
// without a real HTTP round trip.
type fakeClient struct {
	completeResp *schema.IntermediateResponse
	completeErr  error
}

func (f *fakeClient) Complete(ctx context.Context, req *schema.IntermediateRequest) (*schema.IntermediateResponse, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.completeResp, nil
}

func (f *fakeClient) CompleteStream(ctx context.Context, req *schema.IntermediateRequest) (upstream.ChunkIterator, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		PreferredProvider: config.ProviderOpenAI,
		BigModel:          "openai/gpt-4o",
		SmallModel:        "openai/gpt-4o-mini",
	}
}

func newTestRouter(clients Clients) *Router {
	log := applog.FromLogrus(applog.New("error", io.Discard))
	return New(testConfig(), log, clients, upstream.NewHealth())
}

func TestHandleMessagesNonStreaming(t *testing.T) {
	client := &fakeClient{completeResp: &schema.IntermediateResponse{
		Choices: []schema.IntermediateChoice{{
			Message:      schema.IntermediateResponseMessage{Content: "hi there"},
			FinishReason: "stop",
		}},
		Usage: schema.IntermediateUsage{PromptTokens: 5, CompletionTokens: 2},
	}}
	r := newTestRouter(Clients{config.ProviderOpenAI: client})

	body := []byte(`{
		"model": "openai/gpt-4o",
		"max_tokens": 100,
		"messages": [{"role": "user", "content": "hello"}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "message", resp["type"])
	assert.Equal(t, "assistant", resp["role"])
	content := resp["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "hi there", block["text"])
}

func TestHandleMessagesRejectsUnknownProvider(t *testing.T) {
	r := newTestRouter(Clients{})

	body := []byte(`{
		"model": "openai/gpt-4o",
		"max_tokens": 100,
		"messages": [{"role": "user", "content": "hello"}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleMessagesRejectsInvalidBody(t *testing.T) {
	r := newTestRouter(Clients{config.ProviderOpenAI: &fakeClient{}})

	body := []byte(`{"model": "openai/gpt-4o", "max_tokens": 0, "messages": []}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleHealth(t *testing.T) {
	r := newTestRouter(Clients{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStatusWriterTracksStatusAndFlushes(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}

	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sw.status)

	// httptest.ResponseRecorder implements http.Flusher; statusWriter must
	// forward to it rather than silently no-op.
	sw.Flush()
	assert.True(t, rr.Flushed)
}

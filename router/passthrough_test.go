package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klam-proxy/anthropic-openai-gateway/config"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

// fakeRawClient implements both upstream.Client and upstream.RawClient, so
// tests can drive the passthrough route's raw-forwarding path directly
// without a real HTTP round trip.
type fakeRawClient struct {
	gotBody      []byte
	rawStatus    int
	rawBody      []byte
	rawCT        string
	streamBody   string
	rawErr       error
}

func (f *fakeRawClient) Complete(ctx context.Context, req *schema.IntermediateRequest) (*schema.IntermediateResponse, error) {
	return nil, nil
}

func (f *fakeRawClient) CompleteStream(ctx context.Context, req *schema.IntermediateRequest) (upstream.ChunkIterator, error) {
	return nil, nil
}

func (f *fakeRawClient) CompleteRaw(ctx context.Context, body []byte) (int, []byte, string, error) {
	f.gotBody = body
	if f.rawErr != nil {
		return 0, nil, "", f.rawErr
	}
	return f.rawStatus, f.rawBody, f.rawCT, nil
}

func (f *fakeRawClient) CompleteStreamRaw(ctx context.Context, body []byte) (io.ReadCloser, error) {
	f.gotBody = body
	if f.rawErr != nil {
		return nil, f.rawErr
	}
	return io.NopCloser(strings.NewReader(f.streamBody)), nil
}

// TestHandlePassthroughForwardsUpstreamBytesUnchanged checks that the
// response body carries exactly the upstream's JSON (snake_case fields,
// id/object/created preserved) rather than being re-encoded through a Go
// struct with no json tags.
func TestHandlePassthroughForwardsUpstreamBytesUnchanged(t *testing.T) {
	upstreamJSON := `{"id":"chatcmpl-abc","object":"chat.completion","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`
	client := &fakeRawClient{rawStatus: http.StatusOK, rawBody: []byte(upstreamJSON), rawCT: "application/json"}
	r := newTestRouter(Clients{config.ProviderOpenAI: client})

	body := []byte(`{"model": "openai/gpt-4o", "messages": [{"role": "user", "content": "hello"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, upstreamJSON, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(client.gotBody, &sent))
	assert.Equal(t, "openai/gpt-4o", sent["model"])
}

// TestHandlePassthroughStreamingForwardsRawSSE checks that a streaming call
// relays the upstream's own SSE bytes unchanged rather than driving them
// through the Anthropic streaming translator.
func TestHandlePassthroughStreamingForwardsRawSSE(t *testing.T) {
	rawSSE := "data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"
	client := &fakeRawClient{streamBody: rawSSE}
	r := newTestRouter(Clients{config.ProviderOpenAI: client})

	body := []byte(`{"model": "openai/gpt-4o", "stream": true, "messages": [{"role": "user", "content": "hello"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, rawSSE, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "message_start")
}

// TestHandlePassthroughRejectsProviderWithoutRawSupport checks that a
// resolved client which only implements upstream.Client (not RawClient,
// e.g. the Anthropic-native adapter) fails clearly instead of silently
// misrouting the OpenAI-shaped body.
func TestHandlePassthroughRejectsProviderWithoutRawSupport(t *testing.T) {
	r := newTestRouter(Clients{config.ProviderAnthropic: &fakeClient{}})

	body := []byte(`{"model": "anthropic/claude-3-opus", "messages": [{"role": "user", "content": "hello"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

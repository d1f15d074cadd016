package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klam-proxy/anthropic-openai-gateway/config"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/metrics"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// connectTimeout bounds TCP connection setup; request timeout is left to
// ctx, matching the proxy's "the core imposes none of its own" model.
const connectTimeout = 10 * time.Second

// HTTPClient is the OpenAI-compatible client shared by the OpenAI and
// NVIDIA NIM providers — both speak the same chat-completions wire shape,
// differing only in base URL, auth header, and the health snapshot label
// they report under. endpoints rotates round-robin across every configured
// base URL for the provider, one pick per outbound request.
type HTTPClient struct {
	name      string
	endpoints *config.Endpoints
	apiKey    string
	client    *http.Client
	health    *Health
}

// NewHTTPClient builds an OpenAI-compatible client. name identifies the
// provider for health reporting and metrics ("openai" or "nvidia_nim").
func NewHTTPClient(name string, endpoints *config.Endpoints, apiKey string, health *Health) *HTTPClient {
	return &HTTPClient{
		name:      name,
		endpoints: endpoints,
		apiKey:    apiKey,
		health:    health,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// buildRequest picks one endpoint via round robin and builds the outbound
// HTTP request against it, returning the chosen base URL for health
// reporting alongside the request.
func (c *HTTPClient) buildRequest(ctx context.Context, body []byte) (*http.Request, string, error) {
	base := strings.TrimRight(c.endpoints.Pick(), "/")
	if base == "" {
		return nil, "", apierror.New(apierror.KindAPI, "no endpoint configured for provider "+c.name)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, base, fmt.Errorf("building upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return httpReq, base, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, req *schema.IntermediateRequest, stream bool) (*http.Request, string, error) {
	w := toWireRequest(req)
	w.Stream = stream
	body, err := json.Marshal(w)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling upstream request: %w", err)
	}
	return c.buildRequest(ctx, body)
}

// Complete performs one non-streaming call.
func (c *HTTPClient) Complete(ctx context.Context, req *schema.IntermediateRequest) (*schema.IntermediateResponse, error) {
	httpReq, base, err := c.newRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordOutcome(false, base)
		return nil, apierror.Wrap(apierror.KindAPI, "upstream request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(false, base)
		return nil, apierror.Wrap(apierror.KindAPI, "reading upstream response", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.recordOutcome(false, base)
		return nil, apierror.FromUpstreamStatus(resp.StatusCode, string(body))
	}

	var w wireResponse
	if err := json.Unmarshal(body, &w); err != nil {
		c.recordOutcome(false, base)
		return nil, apierror.Wrap(apierror.KindAPI, "parsing upstream response", err)
	}
	c.recordOutcome(true, base)
	return fromWireResponse(&w), nil
}

// CompleteStream performs one streaming call and returns an iterator that
// parses the upstream SSE body one line at a time, yielding a chunk per
// "data:" line as it arrives rather than buffering the whole stream first.
func (c *HTTPClient) CompleteStream(ctx context.Context, req *schema.IntermediateRequest) (ChunkIterator, error) {
	httpReq, base, err := c.newRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordOutcome(false, base)
		return nil, apierror.Wrap(apierror.KindAPI, "upstream request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.recordOutcome(false, base)
		return nil, apierror.FromUpstreamStatus(resp.StatusCode, string(body))
	}

	c.recordOutcome(true, base)
	return newSSEIterator(resp.Body), nil
}

// CompleteRaw forwards body to the chat-completions endpoint unchanged and
// returns the upstream's raw status, body, and content type so the caller
// can relay them byte-for-byte instead of going through the intermediate
// response shape.
func (c *HTTPClient) CompleteRaw(ctx context.Context, body []byte) (status int, respBody []byte, contentType string, err error) {
	httpReq, base, err := c.buildRequest(ctx, body)
	if err != nil {
		return 0, nil, "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordOutcome(false, base)
		return 0, nil, "", apierror.Wrap(apierror.KindAPI, "upstream request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(false, base)
		return 0, nil, "", apierror.Wrap(apierror.KindAPI, "reading upstream response", err)
	}
	c.recordOutcome(resp.StatusCode < 400, base)
	return resp.StatusCode, data, resp.Header.Get("Content-Type"), nil
}

// CompleteStreamRaw forwards body unchanged and returns the upstream's raw
// response body for the caller to copy onto the client connection verbatim,
// preserving whatever SSE shape the upstream itself emits.
func (c *HTTPClient) CompleteStreamRaw(ctx context.Context, body []byte) (io.ReadCloser, error) {
	httpReq, base, err := c.buildRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.recordOutcome(false, base)
		return nil, apierror.Wrap(apierror.KindAPI, "upstream request failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.recordOutcome(false, base)
		return nil, apierror.FromUpstreamStatus(resp.StatusCode, string(data))
	}

	c.recordOutcome(true, base)
	return resp.Body, nil
}

func (c *HTTPClient) recordOutcome(ok bool, endpoint string) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(c.name, outcome).Inc()
	if c.health != nil {
		if ok {
			c.health.RecordSuccess(c.name, endpoint)
		} else {
			c.health.RecordFailure(c.name, endpoint)
		}
	}
}

// sseIterator parses an OpenAI-compatible chat-completions SSE body.
type sseIterator struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	err     error
	done    bool
}

func newSSEIterator(body io.ReadCloser) *sseIterator {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &sseIterator{body: body, scanner: scanner}
}

func (it *sseIterator) Next() (schema.IntermediateChunk, bool) {
	if it.done {
		return schema.IntermediateChunk{}, false
	}
	for it.scanner.Scan() {
		line := it.scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			it.done = true
			return schema.IntermediateChunk{}, false
		}
		var w wireChunk
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			// A single malformed chunk is skipped rather than aborting an
			// otherwise-healthy stream.
			continue
		}
		return fromWireChunk(&w), true
	}
	it.done = true
	if err := it.scanner.Err(); err != nil {
		it.err = err
	}
	return schema.IntermediateChunk{}, false
}

func (it *sseIterator) Err() error {
	return it.err
}

func (it *sseIterator) Close() error {
	return it.body.Close()
}

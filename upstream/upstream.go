// Package upstream exposes the thin per-provider clients behind one
// interface: complete(req) and complete_stream(req) -> iterator<chunk>.
// Provider dispatch and the wire-format translation both live in the proxy
// itself; these clients are deliberately dumb HTTP callers.
package upstream

import (
	"context"
	"io"

	"github.com/klam-proxy/anthropic-openai-gateway/schema"
)

// Client is the abstract collaborator every provider implements. It does
// not retry, fail over, or otherwise recover from a failed call — that is
// an explicit non-goal the router respects by returning the error as-is.
type Client interface {
	// Complete performs a single non-streaming chat-completions call.
	Complete(ctx context.Context, req *schema.IntermediateRequest) (*schema.IntermediateResponse, error)
	// CompleteStream performs a streaming call, returning a ChunkIterator
	// the caller drains to completion or cancels via ctx.
	CompleteStream(ctx context.Context, req *schema.IntermediateRequest) (ChunkIterator, error)
}

// ChunkIterator yields one intermediate chunk at a time. Next returns
// (chunk, true) while chunks remain, (zero, false) once the stream has
// ended or errored; callers check Err after Next returns false. Close
// releases the underlying connection and must be safe to call multiple
// times.
type ChunkIterator interface {
	Next() (schema.IntermediateChunk, bool)
	Err() error
	Close() error
}

// RawClient is implemented by providers that can forward an already
// OpenAI-shaped request body unchanged, for the /v1/chat/completions
// passthrough route. AnthropicClient does not implement it: the native
// Messages API does not accept this wire shape, so a model tag that
// resolves there fails the passthrough route with a clear error instead of
// silently reinterpreting the body.
type RawClient interface {
	// CompleteRaw forwards body unchanged and returns the upstream's raw
	// status, body, and content type for byte-for-byte relay.
	CompleteRaw(ctx context.Context, body []byte) (status int, respBody []byte, contentType string, err error)
	// CompleteStreamRaw forwards body unchanged and returns the upstream's
	// raw response body for the caller to copy onto the client connection.
	CompleteStreamRaw(ctx context.Context, body []byte) (io.ReadCloser, error)
}

package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/applog"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

type passthroughRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

// handlePassthrough forwards an OpenAI-shaped chat-completions body to the
// resolved upstream unchanged, after rewriting only the model field to its
// normalized, provider-tagged form. The upstream's reply — a JSON object or
// an SSE stream — is relayed back to the client byte-for-byte; this route
// never goes through the Anthropic conversion or streaming translator.
func (r *Router) handlePassthrough(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "reading request body", err))
		return
	}

	var pr passthroughRequest
	if err := json.Unmarshal(body, &pr); err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "invalid request body", err))
		return
	}

	effectiveModel := schema.Normalize(pr.Model, r.aliases())
	client, _, err := r.resolveClient(effectiveModel)
	if err != nil {
		writeError(w, err)
		return
	}

	raw, ok := client.(upstream.RawClient)
	if !ok {
		writeError(w, apierror.New(apierror.KindInvalidRequest, "resolved provider does not support the chat completions wire shape"))
		return
	}

	var patched map[string]any
	if err := json.Unmarshal(body, &patched); err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "invalid request body", err))
		return
	}
	patched["model"] = effectiveModel
	patchedBody, err := json.Marshal(patched)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "re-encoding request body", err))
		return
	}

	if pr.Stream {
		r.forwardRawStream(w, req, raw, patchedBody)
		return
	}
	r.forwardRawComplete(w, req, raw, patchedBody)
}

// forwardRawComplete relays a non-streaming upstream reply unchanged,
// preserving its status code, content type, and body.
func (r *Router) forwardRawComplete(w http.ResponseWriter, req *http.Request, client upstream.RawClient, body []byte) {
	status, data, contentType, err := client.CompleteRaw(req.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// forwardRawStream relays the upstream's own SSE byte stream unchanged,
// flushing after every read so the client sees each chunk as it arrives.
func (r *Router) forwardRawStream(w http.ResponseWriter, req *http.Request, client upstream.RawClient, body []byte) {
	upstreamBody, err := client.CompleteStreamRaw(req.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	defer upstreamBody.Close()

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	dst := flushWriter{w: w, f: flusher}
	if _, err := io.Copy(dst, upstreamBody); err != nil {
		applog.WithContext(req.Context(), r.log.WithComponent("passthrough")).Errorf("forwarding upstream stream: %v", err)
	}
}

// flushWriter flushes the underlying http.ResponseWriter after every write,
// so io.Copy relays each upstream read as its own SSE flush.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.f != nil {
		fw.f.Flush()
	}
	return n, err
}

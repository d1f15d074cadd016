package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
)

type countTokensRequest struct {
	Model    string            `json:"model"`
	Messages []json.RawMessage `json:"messages"`
	System   json.RawMessage   `json:"system,omitempty"`
	Tools    []json.RawMessage `json:"tools,omitempty"`
}

type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

// handleCountTokens implements the character/4 heuristic: no upstream
// tokenizer is available, so every textual and JSON-serialized field's byte
// length is summed and divided by 4, rounded up.
func (r *Router) handleCountTokens(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "reading request body", err))
		return
	}

	var ctReq countTokensRequest
	if err := json.Unmarshal(body, &ctReq); err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "invalid request body", err))
		return
	}

	var chars int
	for _, m := range ctReq.Messages {
		chars += len(m)
	}
	chars += len(ctReq.System)
	for _, t := range ctReq.Tools {
		chars += len(t)
	}

	resp := countTokensResponse{InputTokens: ceilDiv(chars, 4)}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

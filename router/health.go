package router

import (
	"encoding/json"
	"net/http"

	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

type healthResponse struct {
	Status    string                   `json:"status"`
	Endpoints []upstream.EndpointHealth `json:"endpoints,omitempty"`
}

// handleHealth reports liveness plus a point-in-time snapshot of per-endpoint
// failure/success counters; it never uses that data to alter routing.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := healthResponse{Status: "ok"}
	if r.health != nil {
		resp.Endpoints = r.health.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

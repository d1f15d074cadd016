// Package router is the proxy's HTTP surface: it binds the schema, convert,
// stream, and upstream packages into the handlers for /v1/messages,
// /v1/messages/count_tokens, /v1/chat/completions, /health, and /metrics.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klam-proxy/anthropic-openai-gateway/config"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/applog"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/metrics"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/requestid"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

// Clients maps a provider to the upstream client that serves it.
type Clients map[config.Provider]upstream.Client

// Router holds everything request handlers need; it is built once at
// startup and never mutated, matching the immutable-config design.
type Router struct {
	cfg     *config.Config
	log     applog.Logger
	clients Clients
	health  *upstream.Health
	mux     *http.ServeMux
}

// New builds the HTTP surface.
func New(cfg *config.Config, log applog.Logger, clients Clients, health *upstream.Health) *Router {
	r := &Router{cfg: cfg, log: log, clients: clients, health: health, mux: http.NewServeMux()}

	r.mux.HandleFunc("/v1/messages", r.withMiddleware("messages", r.handleMessages))
	r.mux.HandleFunc("/v1/messages/count_tokens", r.withMiddleware("count_tokens", r.handleCountTokens))
	r.mux.HandleFunc("/v1/chat/completions", r.withMiddleware("chat_completions", r.handlePassthrough))
	r.mux.HandleFunc("/health", r.withMiddleware("health", r.handleHealth))
	r.mux.Handle("/metrics", promhttp.Handler())

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// withMiddleware attaches a request ID, a scoped logger, and the
// route/status request counter around a handler.
func (r *Router) withMiddleware(route string, h func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := requestid.New()
		w.Header().Set("X-Request-Id", id)
		ctx := requestid.WithRequestID(req.Context(), id)
		req = req.WithContext(ctx)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, req)
		metrics.RequestsTotal.WithLabelValues(route, http.StatusText(sw.status)).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush lets statusWriter satisfy http.Flusher when the underlying
// ResponseWriter does, so streaming handlers behind withMiddleware still
// flush each SSE event as it's written instead of only at connection close.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// writeError serializes err (an *apierror.Error where possible) as the
// Anthropic-shaped error body with the mapped HTTP status.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		apiErr = apierror.Wrap(apierror.KindAPI, "internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Kind.HTTPStatus())
	_ = json.NewEncoder(w).Encode(apiErr.ToBody())
}

// resolveClient picks the upstream client for a normalized model string
// such as "openai/gpt-4o", using its provider tag.
func (r *Router) resolveClient(effectiveModel string) (upstream.Client, config.Provider, error) {
	tag, _, ok := splitTag(effectiveModel)
	if !ok {
		return nil, "", apierror.New(apierror.KindInvalidRequest, "model has no resolvable provider")
	}
	provider := providerForTag(tag)
	client, ok := r.clients[provider]
	if !ok {
		return nil, "", apierror.New(apierror.KindNotFound, "no upstream configured for provider "+string(provider))
	}
	return client, provider, nil
}

func splitTag(model string) (tag, rest string, ok bool) {
	for i := 0; i < len(model); i++ {
		if model[i] == '/' {
			return model[:i], model[i+1:], true
		}
	}
	return "", model, false
}

func providerForTag(tag string) config.Provider {
	switch tag {
	case "anthropic":
		return config.ProviderAnthropic
	case "nvidia_nim":
		return config.ProviderNVIDIA
	default:
		return config.ProviderOpenAI
	}
}

// aliases builds the schema.Aliases the normalizer needs from config.
func (r *Router) aliases() schema.Aliases {
	return schema.Aliases{
		BigModel:   r.cfg.BigModel,
		SmallModel: r.cfg.SmallModel,
		Preferred:  string(r.cfg.PreferredProvider),
		Extra:      r.cfg.ModelAliases,
	}
}

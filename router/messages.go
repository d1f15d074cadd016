package router

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/klam-proxy/anthropic-openai-gateway/convert"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/apierror"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/applog"
	"github.com/klam-proxy/anthropic-openai-gateway/schema"
	"github.com/klam-proxy/anthropic-openai-gateway/stream"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

const maxRequestBody = 10 << 20 // 10 MiB

func (r *Router) handleMessages(w http.ResponseWriter, req *http.Request) {
	log := applog.WithContext(req.Context(), r.log.WithComponent("router"))

	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBody+1))
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "reading request body", err))
		return
	}
	if len(body) > maxRequestBody {
		writeError(w, apierror.New(apierror.KindInvalidRequest, "request body too large"))
		return
	}

	msgReq, err := schema.ParseMessageRequest(body)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "invalid request body", err))
		return
	}

	msgReq.Model = schema.Normalize(msgReq.Model, r.aliases())

	if err := msgReq.Validate(); err != nil {
		writeError(w, err)
		return
	}
	log = log.WithModel(msgReq.Model)

	client, _, err := r.resolveClient(msgReq.Model)
	if err != nil {
		writeError(w, err)
		return
	}

	supportsTools := upstream.SupportsFunctionCalling(msgReq.Model)
	cap := convert.Capability{
		SupportsFunctionCalling: supportsTools,
		OpenAIFamily:            isOpenAIFamily(msgReq.Model),
	}

	interReq, err := convert.ToIntermediate(msgReq, cap)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindInvalidRequest, "converting request", err))
		return
	}

	if msgReq.Stream {
		r.handleStreamingMessage(w, req, log, client, interReq, msgReq.Model)
		return
	}
	r.handleNonStreamingMessage(w, req, log, client, interReq, msgReq.Model)
}

func isOpenAIFamily(effectiveModel string) bool {
	tag, _, ok := splitTag(effectiveModel)
	if !ok {
		return true
	}
	return tag == "openai" || tag == "nvidia_nim"
}

func (r *Router) handleNonStreamingMessage(
	w http.ResponseWriter,
	req *http.Request,
	log applog.Logger,
	client upstream.Client,
	interReq *schema.IntermediateRequest,
	model string,
) {
	interResp, err := client.Complete(req.Context(), interReq)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := convert.FromIntermediate(interResp, model)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindAPI, "converting upstream response", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Errorf("encoding response: %v", err)
	}
}

func (r *Router) handleStreamingMessage(
	w http.ResponseWriter,
	req *http.Request,
	log applog.Logger,
	client upstream.Client,
	interReq *schema.IntermediateRequest,
	model string,
) {
	iter, err := client.CompleteStream(req.Context(), interReq)
	if err != nil {
		writeError(w, err)
		return
	}
	defer iter.Close()

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	sw := stream.NewWriter(w, flusher)

	state := stream.New(stream.NewMessageID(), model)
	state, events := state.Start()
	if err := sw.WriteAll(events); err != nil {
		log.Errorf("writing sse: %v", err)
		return
	}

	finishReason := ""
	for {
		select {
		case <-req.Context().Done():
			return
		default:
		}

		chunk, ok := iter.Next()
		if !ok {
			break
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != "" {
			finishReason = chunk.Choices[0].FinishReason
		}
		state, events = state.Apply(chunk)
		if err := sw.WriteAll(events); err != nil {
			log.Errorf("writing sse: %v", err)
			return
		}
		if finishReason != "" {
			break
		}
	}

	if err := iter.Err(); err != nil {
		log.Errorf("upstream stream error: %v", err)
		_, events = state.TerminateError(err)
	} else {
		_, events = state.Terminate(finishReason)
	}
	if err := sw.WriteAll(events); err != nil {
		log.Errorf("writing sse: %v", err)
	}
}

package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/klam-proxy/anthropic-openai-gateway/config"
	"github.com/klam-proxy/anthropic-openai-gateway/internal/applog"
	"github.com/klam-proxy/anthropic-openai-gateway/router"
	"github.com/klam-proxy/anthropic-openai-gateway/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	baseLogger := applog.New(cfg.LogLevel, os.Stdout)
	appLog := applog.FromLogrus(baseLogger)

	health := upstream.NewHealth()
	clients := router.Clients{}

	if cfg.OpenAIAPIKey != "" {
		clients[config.ProviderOpenAI] = upstream.NewHTTPClient("openai", &cfg.OpenAIEndpoints, cfg.OpenAIAPIKey, health)
	}
	if cfg.NVIDIANIMAPIKey != "" {
		clients[config.ProviderNVIDIA] = upstream.NewHTTPClient("nvidia_nim", &cfg.NVIDIAEndpoints, cfg.NVIDIANIMAPIKey, health)
	}
	if cfg.AnthropicAPIKey != "" {
		clients[config.ProviderAnthropic] = upstream.NewAnthropicClient("", cfg.AnthropicAPIKey, health)
	}
	if len(clients) == 0 {
		log.Fatal("no upstream credentials configured; set ANTHROPIC_API_KEY, OPENAI_API_KEY, or NVIDIA_NIM_API_KEY")
	}

	r := router.New(cfg, appLog, clients, health)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // long enough for SSE streaming responses
		IdleTimeout:  60 * time.Second,
	}

	appLog.WithField("address", fmt.Sprintf("http://%s", cfg.Addr())).Info("anthropic-openai gateway starting")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		appLog.WithField("error", err.Error()).Error("server failed to start")
		log.Fatalf("server failed to start: %v", err)
	}
}

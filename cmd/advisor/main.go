// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command advisor starts the AleutianAdvisor HTTP server.
//
// This is the main entry point for the containerized advisor service.
// It reads configuration from environment variables and starts the
// server.
//
// # Environment Variables
//
//   - ADVISOR_PORT: HTTP server port (default: 12310)
//   - LLM_BACKEND_TYPE: inference provider - ollama, openai, local (default: ollama)
//   - OLLAMA_BASE_URL: Ollama server URL (default: http://localhost:11434)
//   - OLLAMA_MODEL: default model for analysis (default: llama3.2)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: aleutian-otel-collector:4317)
//   - ADVISOR_UPLOAD_DIR: dataset staging directory (default: ./uploads)
//   - ADVISOR_UI_DIR: static UI directory served at /ui (default: ./ui)
//   - ADVISOR_SESSION_TTL_MINUTES: idle session lifetime (default: 60)
//   - ADVISOR_PIPELINE_TIMEOUT_SECONDS: max pipeline run time (default: 300)
//   - ADVISOR_MAX_ROWS: row cap for dataset profiling (default: 10000)
//   - ADVISOR_LOG_LEVEL: debug, info, warn, error (default: info)
//   - ADVISOR_LOG_DIR: JSON log file directory (optional)
//
// # Usage
//
//	# Build
//	go build -o advisor ./cmd/advisor
//
//	# Run against a local Ollama
//	OLLAMA_BASE_URL=http://localhost:11434 ./advisor
//
//	# Or via container
//	podman-compose up advisor
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianAdvisor/services/advisor"
)

func main() {
	cfg := advisor.Config{
		Port:            getEnvInt("ADVISOR_PORT", 12310),
		LLMBackend:      getEnvString("LLM_BACKEND_TYPE", "ollama"),
		OllamaBaseURL:   getEnvString("OLLAMA_BASE_URL", "http://localhost:11434"),
		DefaultModel:    getEnvString("OLLAMA_MODEL", "llama3.2"),
		OTelEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "aleutian-otel-collector:4317"),
		UploadDir:       getEnvString("ADVISOR_UPLOAD_DIR", "./uploads"),
		UIDir:           getEnvString("ADVISOR_UI_DIR", "./ui"),
		SessionTTL:      time.Duration(getEnvInt("ADVISOR_SESSION_TTL_MINUTES", 60)) * time.Minute,
		PipelineTimeout: time.Duration(getEnvInt("ADVISOR_PIPELINE_TIMEOUT_SECONDS", 300)) * time.Second,
		MaxRows:         getEnvInt("ADVISOR_MAX_ROWS", 0),
		LogLevel:        getEnvString("ADVISOR_LOG_LEVEL", "info"),
		LogDir:          os.Getenv("ADVISOR_LOG_DIR"),
	}

	svc, err := advisor.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create advisor: %v", err)
	}

	// Run until SIGINT/SIGTERM, then drain in-flight requests.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		log.Fatalf("Advisor error: %v", err)
	}
	slog.Info("Advisor stopped")
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

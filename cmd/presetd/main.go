// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command presetd serves preset generation over HTTP.
//
// Configuration comes from environment variables; see
// preset.LoadConfigFromEnv for the full list.
//
// # Usage
//
//	go build -o presetd ./cmd/presetd
//	LLM_BACKEND_TYPE=ollama PRESET_CACHE_URL=redis://localhost:6379/0 ./presetd
package main

import (
	"log/slog"
	"os"

	"github.com/AleutianAI/PresetForge/pkg/logging"
	"github.com/AleutianAI/PresetForge/services/preset"
)

func main() {
	cfg, cfgErr := preset.LoadConfigFromEnv()

	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: preset.ServiceName,
		LogDir:  cfg.LogDir,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfgErr != nil {
		slog.Error("Invalid configuration", "error", cfgErr)
		exit(logger, 2)
	}

	slog.Info("Starting presetd",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"tracing", cfg.OTelEndpoint != "",
	)

	svc, err := preset.New(cfg, &preset.Options{Logger: logger.Slog()})
	if err != nil {
		slog.Error("Failed to create presetd", "error", err)
		exit(logger, 1)
	}

	if err := svc.Run(); err != nil {
		slog.Error("presetd error", "error", err)
		exit(logger, 1)
	}
}

// exit flushes the log file before leaving, which a deferred Close would
// not get to do.
func exit(logger *logging.Logger, code int) {
	_ = logger.Close()
	os.Exit(code)
}

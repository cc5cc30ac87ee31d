// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preset

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/PresetForge/pkg/logging"
	"github.com/AleutianAI/PresetForge/services/preset/cache"
	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/pipeline"
)

// =============================================================================
// Configuration
// =============================================================================

// DefaultPort is the presetd HTTP port.
const DefaultPort = 12310

// Config holds everything presetd needs to start.
//
// # Description
//
// Config is built once at startup, usually by LoadConfigFromEnv, and passed
// to New. Components below this package receive their own sub-config and
// never read the environment.
//
// # Fields
//
//   - Port: HTTP listen port. Default: 12310.
//   - LLMBackend: Backend name for llm.NewClient. Default: "openai".
//   - CacheURL: Cache endpoint for cache.ConnectorFromURL. Default: "memory://".
//   - OTelEndpoint: OTLP gRPC collector. Empty disables tracing export.
//   - LogLevel, LogFormat, LogDir: Passed to pkg/logging.
//   - Pipeline: Feature flags and thresholds.
//   - Cache: Cache connection behavior.
type Config struct {
	Port         int
	LLMBackend   string
	CacheURL     string
	OTelEndpoint string
	LogLevel     logging.Level
	LogFormat    string
	LogDir       string
	Pipeline     pipeline.Config
	Cache        cache.ClientConfig
}

// DefaultConfig returns the configuration used when no variable is set.
func DefaultConfig() Config {
	return Config{
		Port:       DefaultPort,
		LLMBackend: "openai",
		CacheURL:   "memory://",
		LogLevel:   logging.LevelInfo,
		LogFormat:  logging.FormatJSON,
		Pipeline:   pipeline.DefaultConfig(),
		Cache:      cache.DefaultClientConfig(),
	}
}

// LoadConfigFromEnv reads Config from the process environment.
//
// # Description
//
// Unset or empty variables keep their defaults. Every malformed value is
// reported; the returned error joins all of them so a bad deployment shows
// every problem at once.
//
// # Environment Variables
//
//   - PRESETD_PORT (12310)
//   - LLM_BACKEND_TYPE (openai)
//   - PRESET_GENERATION_ENABLED, PRESET_ENSEMBLE_ENABLED (true)
//   - PRESET_HOUR_CEILING (8, within [1,320])
//   - PRESET_COMPLETENESS_THRESHOLD (0.65, within [0,1]; 0 accepts all)
//   - PRESET_MIN_ACTIVITIES, PRESET_MAX_ACTIVITIES (5, 20; narrowed to
//     [5,20] for validation)
//   - PRESET_CACHE_TTL_DAYS (7)
//   - PRESET_CACHE_URL (memory://)
//   - PRESET_BACKEND_TIMEOUT (60s)
//   - PRESET_MAX_OUTPUT_TOKENS (backend default)
//   - PRESET_COALESCE_INFLIGHT (false)
//   - PRESET_POLICY_SCAN_ENABLED (false)
//   - LOG_LEVEL, LOG_FORMAT, LOG_DIR (info, json, unset)
//   - OTEL_EXPORTER_OTLP_ENDPOINT (unset)
func LoadConfigFromEnv() (Config, error) {
	return LoadConfig(os.Getenv)
}

// LoadConfig is LoadConfigFromEnv with an explicit lookup function.
func LoadConfig(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}
	cfg := DefaultConfig()

	cfg.Port = env.getInt("PRESETD_PORT", cfg.Port)
	cfg.LLMBackend = env.getString("LLM_BACKEND_TYPE", cfg.LLMBackend)
	cfg.CacheURL = env.getString("PRESET_CACHE_URL", cfg.CacheURL)
	cfg.OTelEndpoint = env.getString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.LogFormat = strings.ToLower(env.getString("LOG_FORMAT", cfg.LogFormat))
	cfg.LogDir = env.getString("LOG_DIR", "")
	if raw := env.getString("LOG_LEVEL", ""); raw != "" {
		level, err := logging.ParseLevel(raw)
		if err != nil {
			env.errs = append(env.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
		cfg.LogLevel = level
	}

	p := &cfg.Pipeline
	p.GenerationEnabled = env.getBool("PRESET_GENERATION_ENABLED", p.GenerationEnabled)
	p.EnsembleEnabled = env.getBool("PRESET_ENSEMBLE_ENABLED", p.EnsembleEnabled)
	p.HourCeiling = env.getFloat("PRESET_HOUR_CEILING", p.HourCeiling)
	p.CompletenessThreshold = env.getFloat("PRESET_COMPLETENESS_THRESHOLD", p.CompletenessThreshold)
	p.MinActivities = env.getInt("PRESET_MIN_ACTIVITIES", p.MinActivities)
	p.MaxActivities = env.getInt("PRESET_MAX_ACTIVITIES", p.MaxActivities)
	p.CacheTTL = time.Duration(env.getInt("PRESET_CACHE_TTL_DAYS", int(p.CacheTTL/(24*time.Hour)))) * 24 * time.Hour
	p.BackendTimeout = env.getDuration("PRESET_BACKEND_TIMEOUT", p.BackendTimeout)
	p.MaxOutputTokens = env.getInt("PRESET_MAX_OUTPUT_TOKENS", p.MaxOutputTokens)
	p.CoalesceInFlight = env.getBool("PRESET_COALESCE_INFLIGHT", p.CoalesceInFlight)
	p.PolicyScanEnabled = env.getBool("PRESET_POLICY_SCAN_ENABLED", p.PolicyScanEnabled)

	if !(p.CompletenessThreshold >= 0 && p.CompletenessThreshold <= 1) {
		env.errs = append(env.errs, fmt.Errorf("PRESET_COMPLETENESS_THRESHOLD: %v is outside [0,1]", p.CompletenessThreshold))
	}
	if !(p.HourCeiling >= 1 && p.HourCeiling <= datatypes.MaxEstimatedHours) {
		env.errs = append(env.errs, fmt.Errorf("PRESET_HOUR_CEILING: %v is outside [1,%g]", p.HourCeiling, datatypes.MaxEstimatedHours))
	}
	if p.MinActivities > p.MaxActivities {
		env.errs = append(env.errs, fmt.Errorf("PRESET_MIN_ACTIVITIES (%d) exceeds PRESET_MAX_ACTIVITIES (%d)",
			p.MinActivities, p.MaxActivities))
	}

	return cfg, errors.Join(env.errs...)
}

// envReader parses typed values and collects the failures.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) getString(key, def string) string {
	if v := strings.Trim(e.getenv(key), "\"' "); v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(key string, def int) int {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e *envReader) getFloat(key string, def float64) float64 {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (e *envReader) getBool(key string, def bool) bool {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *envReader) getDuration(key string, def time.Duration) time.Duration {
	v := e.getString(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are seconds.
		if secs, serr := strconv.Atoi(v); serr == nil {
			return time.Duration(secs) * time.Second
		}
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"math"
	"time"

	"github.com/AleutianAI/PresetForge/services/preset/splitter"
	"github.com/AleutianAI/PresetForge/services/preset/validation"
)

// Config holds the pipeline's feature flags and thresholds.
//
// # Description
//
// Config is passed explicitly to New. Nothing in the pipeline reads the
// environment; see preset.LoadConfigFromEnv for the env mapping.
//
// # Fields
//
//   - GenerationEnabled: When false every request returns the Fallback
//     Preset without backend calls.
//   - EnsembleEnabled: When false the skeleton stage is skipped (direct mode).
//   - HourCeiling: Upper bound for activity hours after splitting.
//   - CompletenessThreshold: Minimum average completeness to accept. 0
//     accepts every expansion; negative values take the default.
//   - MinActivities, MaxActivities: Bounds for the post-validation sanity log.
//   - CacheTTL: Lifetime of accepted presets in the cache.
//   - BackendTimeout: Bound for each backend call.
//   - ExpandTemperatures: One expand attempt per entry, in order. At most
//     MaxExpandAttempts entries are used.
//   - MaxOutputTokens: Per-call completion limit. 0 uses the backend default.
//   - CoalesceInFlight: Share one generation among identical concurrent
//     requests.
//   - PolicyScanEnabled: Refuse to send inputs containing credentials or
//     personal data to the backend.
type Config struct {
	GenerationEnabled     bool
	EnsembleEnabled       bool
	HourCeiling           float64
	CompletenessThreshold float64
	MinActivities         int
	MaxActivities         int
	CacheTTL              time.Duration
	BackendTimeout        time.Duration
	ExpandTemperatures    []float64
	MaxOutputTokens       int
	CoalesceInFlight      bool
	PolicyScanEnabled     bool
}

// Default values.
const (
	DefaultCompletenessThreshold = 0.65
	DefaultCacheTTL              = 7 * 24 * time.Hour
	DefaultBackendTimeout        = 60 * time.Second
	InitialExpandTemperature     = 0.6
	RetryExpandTemperature       = 0.8

	// MaxExpandAttempts caps ExpandTemperatures: the first attempt plus
	// one retry.
	MaxExpandAttempts = 2
)

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		GenerationEnabled:     true,
		EnsembleEnabled:       true,
		HourCeiling:           splitter.DefaultCeiling,
		CompletenessThreshold: DefaultCompletenessThreshold,
		MinActivities:         validation.DefaultMinActivities,
		MaxActivities:         validation.DefaultMaxActivities,
		CacheTTL:              DefaultCacheTTL,
		BackendTimeout:        DefaultBackendTimeout,
		ExpandTemperatures:    []float64{InitialExpandTemperature, RetryExpandTemperature},
	}
}

// applyConfigDefaults fills zero numeric fields. CompletenessThreshold is
// only replaced when negative, since 0 is meaningful. Boolean flags are
// taken as given; start from DefaultConfig to get them enabled.
func applyConfigDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.HourCeiling <= 0 {
		cfg.HourCeiling = d.HourCeiling
	}
	if cfg.CompletenessThreshold < 0 || math.IsNaN(cfg.CompletenessThreshold) {
		cfg.CompletenessThreshold = d.CompletenessThreshold
	}
	if cfg.MinActivities <= 0 {
		cfg.MinActivities = d.MinActivities
	}
	if cfg.MaxActivities <= 0 {
		cfg.MaxActivities = d.MaxActivities
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = d.CacheTTL
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = d.BackendTimeout
	}
	if len(cfg.ExpandTemperatures) == 0 {
		cfg.ExpandTemperatures = d.ExpandTemperatures
	}
	if len(cfg.ExpandTemperatures) > MaxExpandAttempts {
		cfg.ExpandTemperatures = cfg.ExpandTemperatures[:MaxExpandAttempts]
	}
	return cfg
}

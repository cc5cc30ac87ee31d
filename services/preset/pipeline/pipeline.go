// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline orchestrates preset generation.
//
// # Description
//
// Pipeline is the only component with branching and retry logic. One run
// walks this state machine:
//
//	CacheLookup ─► HitReturn
//	    │
//	    ├─ generation disabled ─► FallbackReturn
//	    ├─ policy finding (when scanning) ─► FallbackReturn
//	    ▼
//	GenerateSkeleton ─(fatal)─► FallbackReturn
//	    ▼
//	GenerateExpand ─► Score ─(below threshold, once)─► GenerateExpand at 0.8
//	    ▼
//	Split ─► Validate ─► CacheStoreAndReturn | FallbackReturn
//
// GeneratePreset never panics and never returns an error: every failure
// becomes a result carrying the Fallback Preset.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/PresetForge/services/llm"
	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/generation"
	"github.com/AleutianAI/PresetForge/services/preset/observability"
	"github.com/AleutianAI/PresetForge/services/preset/policy"
	"github.com/AleutianAI/PresetForge/services/preset/scoring"
	"github.com/AleutianAI/PresetForge/services/preset/splitter"
	"github.com/AleutianAI/PresetForge/services/preset/validation"
)

// Stage names used in logs and spans.
const (
	stageCacheLookup = "cache_lookup"
	stagePolicy      = "policy"
	stageSkeleton    = "skeleton"
	stageExpand      = "expand"
	stageSplit       = "split"
	stageValidate    = "validate"
	stageCacheStore  = "cache_store"
	stageFallback    = "fallback"
)

const tracerName = "presetforge.pipeline"

// Cache is the best-effort store the pipeline reads and writes.
// cache.Client implements it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// noCache is used when no Cache is configured.
type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (noCache) Set(context.Context, string, []byte, time.Duration) bool { return false }

// Dependencies are the collaborators injected into New.
//
// # Fields
//
//   - Backend: Required when generation is enabled.
//   - Cache: Optional. Nil disables caching.
//   - Scorer: Optional. Default: scoring.NewBagOfWordsScorer().
//   - Validator: Optional. Default: the cfg activity bounds, clamped by
//     validation.ClampBounds.
//   - Recorder: Optional. Default: observability.NoopRecorder.
//   - Logger: Optional. Default: slog.Default().
//   - Policy: Used when cfg.PolicyScanEnabled. Default: policy.NewEngine().
type Dependencies struct {
	Backend   llm.LLMClient
	Cache     Cache
	Scorer    scoring.Scorer
	Validator *validation.Validator
	Recorder  observability.Recorder
	Logger    *slog.Logger
	Policy    InputPolicy
}

// InputPolicy finds sensitive data in text bound for the backend.
// *policy.Engine implements it.
type InputPolicy interface {
	Scan(text string) []policy.Finding
}

// ErrPolicyViolation is the cause reported when the input policy blocks a
// request.
var ErrPolicyViolation = errors.New("input contains sensitive data")

// Pipeline runs preset generation requests.
//
// # Thread Safety
//
// Safe for concurrent use. Runs share only the cache, the recorder and,
// when CoalesceInFlight is set, the in-flight group.
type Pipeline struct {
	cfg       Config
	skeleton  *generation.SkeletonGenerator
	expander  *generation.Expander
	cache     Cache
	scorer    scoring.Scorer
	validator *validation.Validator
	recorder  observability.Recorder
	logger    *slog.Logger
	policy    InputPolicy
	tracer    trace.Tracer
	inflight  singleflight.Group
}

// New creates a Pipeline.
//
// # Inputs
//
//   - cfg: Zero numeric fields take defaults; flags are used as given.
//   - deps: Backend is required when cfg.GenerationEnabled is true.
//
// # Outputs
//
//   - *Pipeline: Ready to serve.
//   - error: Non-nil when a required dependency is missing.
func New(cfg Config, deps Dependencies) (*Pipeline, error) {
	cfg = applyConfigDefaults(cfg)
	if cfg.GenerationEnabled && deps.Backend == nil {
		return nil, errors.New("pipeline: backend is required when generation is enabled")
	}
	if deps.Cache == nil {
		deps.Cache = noCache{}
	}
	if deps.Scorer == nil {
		deps.Scorer = scoring.NewBagOfWordsScorer()
	}
	if deps.Validator == nil {
		deps.Validator = validation.NewWithBounds(validation.ClampBounds(cfg.MinActivities, cfg.MaxActivities))
	}
	if deps.Recorder == nil {
		deps.Recorder = observability.NoopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.PolicyScanEnabled && deps.Policy == nil {
		engine, err := policy.NewEngine()
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		deps.Policy = engine
	}

	return &Pipeline{
		cfg:       cfg,
		skeleton:  generation.NewSkeletonGenerator(deps.Backend, cfg.MaxOutputTokens),
		expander:  generation.NewExpander(deps.Backend, cfg.MaxOutputTokens),
		cache:     deps.Cache,
		scorer:    deps.Scorer,
		validator: deps.Validator,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		policy:    deps.Policy,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// GeneratePreset runs one generation request.
//
// # Description
//
// Sanitizes the input, consults the cache, and otherwise generates,
// scores, splits and validates a preset. Unrecoverable failures and
// unexpected panics are converted into a result with Success false and the
// Fallback Preset.
//
// # Inputs
//
//   - ctx: Cancels backend calls. A cancelled context leads to fallback.
//   - input: The request. RequestID is generated if empty.
//
// # Outputs
//
//   - datatypes.GenerateResult: Always carries a structurally valid preset.
//
// # Examples
//
//	result := p.GeneratePreset(ctx, datatypes.PipelineInput{
//	    UserID:      "u-1",
//	    Description: "Build a customer self-service password reset flow",
//	    Answers:     map[string]any{"auth_mechanism": "custom_jwt"},
//	})
//	if !result.Success {
//	    log.Printf("fallback served: %s", result.Error)
//	}
func (p *Pipeline) GeneratePreset(ctx context.Context, input datatypes.PipelineInput) (result datatypes.GenerateResult) {
	start := time.Now()
	input.EnsureDefaults()
	logger := p.logger.With("request_id", input.RequestID, "user_id", input.UserID)

	ctx, span := p.tracer.Start(ctx, "pipeline.GeneratePreset",
		trace.WithAttributes(attribute.String("request_id", input.RequestID)))
	defer span.End()

	p.recorder.RecordAttempt()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("unexpected panic: %v", r)
			logger.Error("Pipeline panicked, serving fallback",
				"stage", stageFallback,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			span.RecordError(err)
			result = p.fallback(logger, observability.ReasonPanic, err, datatypes.ResultMetadata{})
		}

		result.Metadata.GenerationTimeMs = time.Since(start).Milliseconds()
		outcome := observability.OutcomeGenerated
		switch {
		case result.Metadata.Cached:
			outcome = observability.OutcomeCacheHit
		case result.Metadata.FallbackVersion != "":
			outcome = observability.OutcomeFallback
		}
		p.recorder.ObserveDuration(outcome, time.Since(start))
		span.SetAttributes(
			attribute.String("outcome", outcome),
			attribute.Bool("success", result.Success),
			attribute.Int("attempts", result.Metadata.Attempts))
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
	}()

	req, err := deriveRequest(input)
	if err != nil {
		return p.fallback(logger, observability.ReasonInvalidInput, err, datatypes.ResultMetadata{})
	}
	logger = logger.With("cache_key", req.cacheKey)

	if cached, ok := p.lookup(ctx, logger, req.cacheKey); ok {
		p.recorder.RecordCacheHit()
		return datatypes.GenerateResult{
			Success: true,
			Preset:  cached,
			Metadata: datatypes.ResultMetadata{
				Cached:      true,
				ModelPasses: []string{},
			},
		}
	}

	if !p.cfg.GenerationEnabled {
		logger.Info("Generation disabled, serving fallback", "stage", stageFallback)
		return p.fallback(logger, observability.ReasonDisabled, nil, datatypes.ResultMetadata{})
	}

	if err := p.checkPolicy(logger, req); err != nil {
		return p.fallback(logger, observability.ReasonPolicyBlocked, err, datatypes.ResultMetadata{})
	}

	if !p.cfg.CoalesceInFlight {
		return p.generate(ctx, logger, req)
	}

	// The shared run outlives any one caller's cancellation; each backend
	// call is still bounded by BackendTimeout.
	sharedCtx := context.WithoutCancel(ctx)
	v, _, shared := p.inflight.Do(req.cacheKey, func() (any, error) {
		return p.generate(sharedCtx, logger, req), nil
	})
	r := v.(datatypes.GenerateResult)
	if shared {
		logger.Info("Joined in-flight generation", "stage", stageExpand)
		r = cloneResult(r)
	}
	return r
}

// checkPolicy scans the text the backend would receive. Findings are
// logged by pattern id only; the matched text is never logged.
func (p *Pipeline) checkPolicy(logger *slog.Logger, req derivedRequest) error {
	if !p.cfg.PolicyScanEnabled || p.policy == nil {
		return nil
	}
	findings := p.policy.Scan(req.enrichedPrompt)
	if len(findings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(findings))
	for _, f := range findings {
		ids = append(ids, f.PatternID)
	}
	logger.Warn("Input blocked by policy", "stage", stagePolicy, "patterns", ids)
	return fmt.Errorf("%w: %s (%s)", ErrPolicyViolation, findings[0].Classification, findings[0].Description)
}

// lookup returns the cached preset for key. Undecodable entries are misses.
func (p *Pipeline) lookup(ctx context.Context, logger *slog.Logger, key string) (datatypes.PresetOutput, bool) {
	ctx, span := p.tracer.Start(ctx, "pipeline.cache_lookup")
	defer span.End()

	raw, ok := p.cache.Get(ctx, key)
	if !ok {
		logger.Info("Cache miss", "stage", stageCacheLookup)
		span.SetAttributes(attribute.Bool("hit", false))
		return datatypes.PresetOutput{}, false
	}

	var preset datatypes.PresetOutput
	if err := json.Unmarshal(raw, &preset); err != nil {
		logger.Warn("Discarding undecodable cache entry", "stage", stageCacheLookup, "error", err)
		span.RecordError(err)
		return datatypes.PresetOutput{}, false
	}
	logger.Info("Cache hit", "stage", stageCacheLookup)
	span.SetAttributes(attribute.Bool("hit", true))
	return preset, true
}

// generate runs the backend stages through to cache store.
func (p *Pipeline) generate(ctx context.Context, logger *slog.Logger, req derivedRequest) datatypes.GenerateResult {
	meta := datatypes.ResultMetadata{ModelPasses: []string{}}

	var skeleton []datatypes.Activity
	if p.cfg.EnsembleEnabled {
		meta.ModelPasses = append(meta.ModelPasses, datatypes.PassSkeleton)
		var err error
		skeleton, err = p.runSkeleton(ctx, logger, req)
		if err != nil {
			logger.Warn("Skeleton stage failed", "stage", stageSkeleton, "error", err)
			return p.fallback(logger, observability.ReasonSkeletonFailed, err, meta)
		}
	} else {
		logger.Info("Ensemble disabled, expanding directly", "stage", stageExpand)
	}

	candidate, reason, err := p.expandUntilAccepted(ctx, logger, req, skeleton, &meta)
	if err != nil {
		return p.fallback(logger, reason, err, meta)
	}

	candidate.Activities = splitter.Split(candidate.Activities, p.cfg.HourCeiling)
	logger.Info("Split oversized activities",
		"stage", stageSplit,
		"activities", len(candidate.Activities))

	if check := p.validator.Validate(candidate); !check.Valid {
		logger.Warn("Structural validation failed, serving fallback",
			"stage", stageValidate,
			"violations", check.Violations)
		meta.ValidationErrors = check.Violations
		return p.fallback(logger, observability.ReasonValidationFailed,
			fmt.Errorf("preset failed structural validation with %d violations", len(check.Violations)), meta)
	}
	logger.Info("Structural validation passed", "stage", stageValidate)
	p.sanityCheck(logger, candidate)

	accepted, err := p.store(ctx, logger, req.cacheKey, candidate)
	if err != nil {
		return p.fallback(logger, observability.ReasonValidationFailed, err, meta)
	}

	p.recorder.RecordSuccess()
	return datatypes.GenerateResult{Success: true, Preset: accepted, Metadata: meta}
}

func (p *Pipeline) runSkeleton(ctx context.Context, logger *slog.Logger, req derivedRequest) ([]datatypes.Activity, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.skeleton")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.BackendTimeout)
	defer cancel()

	skeleton, err := p.skeleton.Generate(callCtx, req.enrichedPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "skeleton failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("activities", len(skeleton)))
	logger.Info("Skeleton generated", "stage", stageSkeleton, "activities", len(skeleton))
	return skeleton, nil
}

// expandUntilAccepted runs up to MaxExpandAttempts expand calls and returns
// the first candidate whose average completeness meets the threshold. It
// records attempts, passes and the latest completeness in meta. On failure
// the returned reason names the last attempt's failure.
func (p *Pipeline) expandUntilAccepted(
	ctx context.Context,
	logger *slog.Logger,
	req derivedRequest,
	skeleton []datatypes.Activity,
	meta *datatypes.ResultMetadata,
) (datatypes.PresetOutput, string, error) {
	var (
		lastErr error
		reason  string
	)

	for i, temp := range p.cfg.ExpandTemperatures {
		meta.Attempts++
		meta.ModelPasses = append(meta.ModelPasses, fmt.Sprintf("%s%.1f", datatypes.PassExpandPrefix, temp))
		p.recorder.RecordExpandAttempt(temp)

		candidate, avg, err := p.runExpand(ctx, req, skeleton, temp, i+1)
		if err != nil {
			logger.Warn("Expand attempt failed",
				"stage", stageExpand,
				"attempt", i+1,
				"temperature", temp,
				"error", err)
			lastErr, reason = err, observability.ReasonExpandFailed
			continue
		}

		meta.AverageCompleteness = &avg
		if avg >= p.cfg.CompletenessThreshold {
			logger.Info("Expansion accepted",
				"stage", stageExpand,
				"attempt", i+1,
				"temperature", temp,
				"completeness", avg)
			return candidate, "", nil
		}
		logger.Warn("Completeness below threshold",
			"stage", stageExpand,
			"attempt", i+1,
			"temperature", temp,
			"completeness", avg,
			"threshold", p.cfg.CompletenessThreshold)
		lastErr = fmt.Errorf("average completeness %.2f below threshold %.2f",
			avg, p.cfg.CompletenessThreshold)
		reason = observability.ReasonLowCompleteness
	}

	return datatypes.PresetOutput{}, reason,
		fmt.Errorf("no acceptable expansion after %d attempts: %w", meta.Attempts, lastErr)
}

func (p *Pipeline) runExpand(
	ctx context.Context,
	req derivedRequest,
	skeleton []datatypes.Activity,
	temp float64,
	attempt int,
) (datatypes.PresetOutput, float64, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.expand", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Float64("temperature", temp)))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.BackendTimeout)
	defer cancel()

	candidate, err := p.expander.Expand(callCtx, skeleton, req.enrichedPrompt, temp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expand failed")
		return datatypes.PresetOutput{}, 0, err
	}

	_, avg := p.scorer.ScorePreset(candidate.Activities, req.description)
	span.SetAttributes(attribute.Float64("completeness", avg))
	return candidate, avg, nil
}

// sanityCheck logs conditions that should not occur after validation.
func (p *Pipeline) sanityCheck(logger *slog.Logger, preset datatypes.PresetOutput) {
	n := len(preset.Activities)
	if n < p.cfg.MinActivities || n > p.cfg.MaxActivities {
		logger.Warn("Activity count outside configured bounds",
			"stage", stageValidate,
			"activities", n,
			"min", p.cfg.MinActivities,
			"max", p.cfg.MaxActivities)
	}
	for _, a := range preset.Activities {
		if a.EstimatedHours > p.cfg.HourCeiling {
			logger.Warn("Activity exceeds hour ceiling after split",
				"stage", stageValidate,
				"title", a.Title,
				"hours", a.EstimatedHours,
				"ceiling", p.cfg.HourCeiling)
		}
	}
}

// store writes the accepted preset and returns its canonical decoded form,
// so a fresh result and a later cache hit carry identical content.
func (p *Pipeline) store(ctx context.Context, logger *slog.Logger, key string, preset datatypes.PresetOutput) (datatypes.PresetOutput, error) {
	raw, err := json.Marshal(preset)
	if err != nil {
		return datatypes.PresetOutput{}, fmt.Errorf("encode preset: %w", err)
	}
	var canonical datatypes.PresetOutput
	if err := json.Unmarshal(raw, &canonical); err != nil {
		return datatypes.PresetOutput{}, fmt.Errorf("decode preset: %w", err)
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.cache_store")
	defer span.End()
	if ok := p.cache.Set(ctx, key, raw, p.cfg.CacheTTL); !ok {
		logger.Warn("Cache write dropped", "stage", stageCacheStore)
	} else {
		logger.Info("Preset cached", "stage", stageCacheStore, "ttl", p.cfg.CacheTTL)
	}
	return canonical, nil
}

// fallback builds a result carrying the Fallback Preset.
func (p *Pipeline) fallback(logger *slog.Logger, reason string, cause error, meta datatypes.ResultMetadata) datatypes.GenerateResult {
	p.recorder.RecordFallback(reason)
	if meta.ModelPasses == nil {
		meta.ModelPasses = []string{}
	}
	meta.FallbackVersion = datatypes.FallbackVersion

	result := datatypes.GenerateResult{
		Success:  cause == nil,
		Preset:   datatypes.FallbackPreset(),
		Metadata: meta,
	}
	if cause != nil {
		result.Error = cause.Error()
		logger.Warn("Serving fallback preset",
			"stage", stageFallback,
			"reason", reason,
			"error", cause)
	}
	return result
}

// cloneResult deep-copies a result shared between coalesced callers.
func cloneResult(r datatypes.GenerateResult) datatypes.GenerateResult {
	out := r
	out.Preset = r.Preset.Clone()
	out.Metadata.ModelPasses = append([]string{}, r.Metadata.ModelPasses...)
	if r.Metadata.ValidationErrors != nil {
		out.Metadata.ValidationErrors = append([]string{}, r.Metadata.ValidationErrors...)
	}
	if r.Metadata.AverageCompleteness != nil {
		avg := *r.Metadata.AverageCompleteness
		out.Metadata.AverageCompleteness = &avg
	}
	return out
}

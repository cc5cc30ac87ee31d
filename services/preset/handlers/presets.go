// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/validation"
)

var presetTracer = otel.Tracer("presetforge.handlers")

// RequestIDHeader echoes the correlation id of a generate request.
const RequestIDHeader = "X-Request-ID"

// PresetGenerator is the part of the pipeline the HTTP layer needs.
type PresetGenerator interface {
	GeneratePreset(ctx context.Context, input datatypes.PipelineInput) datatypes.GenerateResult
}

// PresetValidator checks a preset's structure.
type PresetValidator interface {
	Validate(preset datatypes.PresetOutput) validation.Result
}

// HandleGeneratePreset serves POST /v1/presets/generate.
//
// # Description
//
// Binds the request body into a PipelineInput and runs the pipeline. Any
// pipeline outcome, including a fallback, is a 200 with the GenerateResult;
// callers read success and metadata from the body. Only requests the
// pipeline cannot start on are rejected.
//
// # Outputs
//
//   - 200: datatypes.GenerateResult. The X-Request-ID header carries the
//     correlation id, generated when the body had none.
//   - 400: {"error": ...} for an unparseable body or an empty description.
func HandleGeneratePreset(gen PresetGenerator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := presetTracer.Start(c.Request.Context(), "HandleGeneratePreset")
		defer span.End()

		var input datatypes.PipelineInput
		if err := c.ShouldBindJSON(&input); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request body")
			slog.Warn("Rejected preset request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if strings.TrimSpace(input.Description) == "" {
			span.SetStatus(codes.Error, "empty description")
			c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
			return
		}

		input.EnsureDefaults()
		span.SetAttributes(attribute.String("request.id", input.RequestID))

		result := gen.GeneratePreset(ctx, input)
		span.SetAttributes(attribute.Bool("preset.success", result.Success))

		c.Header(RequestIDHeader, input.RequestID)
		c.JSON(http.StatusOK, result)
	}
}

// HandleFallbackPreset serves GET /v1/presets/fallback.
func HandleFallbackPreset() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version": datatypes.FallbackVersion,
			"preset":  datatypes.FallbackPreset(),
		})
	}
}

// HandleValidatePreset serves POST /v1/presets/validate.
//
// A structurally invalid preset is still a 200; the body carries
// valid=false and the violations. 400 is reserved for bodies that are not a
// preset object at all.
func HandleValidatePreset(v PresetValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var preset datatypes.PresetOutput
		if err := c.ShouldBindJSON(&preset); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preset body"})
			return
		}
		c.JSON(http.StatusOK, v.Validate(preset))
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

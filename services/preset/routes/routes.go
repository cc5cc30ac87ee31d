// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/PresetForge/services/preset/handlers"
)

// SetupRoutes mounts the presetd HTTP surface on router.
//
// gatherer backs /metrics; pass the registry the pipeline's recorder was
// registered on. A nil gatherer uses prometheus.DefaultGatherer.
func SetupRoutes(router *gin.Engine, gen handlers.PresetGenerator, validator handlers.PresetValidator,
	gatherer prometheus.Gatherer) {

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		presets := v1.Group("/presets")
		{
			presets.POST("/generate", handlers.HandleGeneratePreset(gen))
			presets.GET("/fallback", handlers.HandleFallbackPreset())
			presets.POST("/validate", handlers.HandleValidatePreset(validator))
		}
	}
}

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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/sanitize"
)

// CacheKeyPrefix namespaces preset entries in the cache store.
const CacheKeyPrefix = "processed:preset:"

// derivedRequest is the sanitized view of a PipelineInput.
type derivedRequest struct {
	description    string
	enrichedPrompt string
	cacheKey       string
}

// deriveRequest sanitizes input and builds the enriched prompt and key.
//
// # Description
//
// The enriched prompt concatenates the sanitized description, the sanitized
// answers as JSON (encoding/json sorts map keys) and the sanitized category
// hint. UserID and RequestID never contribute, so identical requests from
// different users share a cache entry.
func deriveRequest(in datatypes.PipelineInput) (derivedRequest, error) {
	description := sanitize.Text(in.Description)
	category := sanitize.Text(in.CategoryHint)

	answersJSON := []byte("{}")
	if len(in.Answers) > 0 {
		raw, err := json.Marshal(sanitize.Answers(in.Answers))
		if err != nil {
			return derivedRequest{}, fmt.Errorf("encode answers: %w", err)
		}
		answersJSON = raw
	}

	var b strings.Builder
	b.WriteString("Project description:\n")
	b.WriteString(description)
	b.WriteString("\n\nAnswers:\n")
	b.Write(answersJSON)
	if category != "" {
		b.WriteString("\n\nCategory hint: ")
		b.WriteString(category)
	}
	prompt := b.String()

	sum := sha256.Sum256([]byte(prompt))
	return derivedRequest{
		description:    description,
		enrichedPrompt: prompt,
		cacheKey:       CacheKeyPrefix + hex.EncodeToString(sum[:]),
	}, nil
}

// CacheKey returns the cache key a request maps to.
func CacheKey(in datatypes.PipelineInput) (string, error) {
	req, err := deriveRequest(in)
	if err != nil {
		return "", err
	}
	return req.cacheKey, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package policy detects credentials and personal data in text that is
// about to leave the process for an LLM backend.
package policy

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// PublicClassification is returned by Classify when nothing matches.
const PublicClassification = "public"

//go:embed patterns.yaml
var embeddedPatterns []byte

// Engine matches text against prioritized classification patterns.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type Engine struct {
	classifications []Classification
}

// NewEngine builds an Engine from the embedded pattern file.
func NewEngine() (*Engine, error) {
	return NewEngineFromYAML(embeddedPatterns)
}

// NewEngineFromYAML builds an Engine from a pattern document in the
// embedded file's format.
func NewEngineFromYAML(data []byte) (*Engine, error) {
	var file classificationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy patterns: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	file.sortByPriority()
	return &Engine{classifications: file.Classifications}, nil
}

// Classify returns the name of the highest-priority classification with
// any match, or PublicClassification.
func (e *Engine) Classify(text string) string {
	for _, c := range e.classifications {
		for _, p := range c.Patterns {
			if p.compiled.MatchString(text) {
				return c.Name
			}
		}
	}
	return PublicClassification
}

// Scan reports every pattern that matches, line by line. Findings are
// ordered by line, then by classification priority.
func (e *Engine) Scan(text string) []Finding {
	var findings []Finding
	for i, line := range strings.Split(text, "\n") {
		for _, c := range e.classifications {
			for _, p := range c.Patterns {
				if !p.compiled.MatchString(line) {
					continue
				}
				findings = append(findings, Finding{
					Line:           i + 1,
					Classification: c.Name,
					PatternID:      p.ID,
					Description:    p.Description,
					Confidence:     p.Confidence,
				})
			}
		}
	}
	return findings
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FallbackVersion identifies the embedded fallback asset. It is reported in
// result metadata whenever the fallback is served.
const FallbackVersion = "2025.1"

//go:embed fallback_preset.yaml
var fallbackYAML []byte

// fallbackPreset is decoded once and never handed out directly.
var fallbackPreset = mustDecodeFallback(fallbackYAML)

func mustDecodeFallback(raw []byte) PresetOutput {
	var p PresetOutput
	if err := yaml.Unmarshal(raw, &p); err != nil {
		panic(fmt.Sprintf("datatypes: embedded fallback preset is invalid: %v", err))
	}
	return p
}

// FallbackPreset returns a deep copy of the static Fallback Preset.
//
// # Description
//
// The fallback is a hand-authored constant embedded at build time. Each
// call returns an independent copy so no caller can mutate the shared value.
func FallbackPreset() PresetOutput {
	return fallbackPreset.Clone()
}

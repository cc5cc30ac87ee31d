// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command presetctl generates, validates and inspects project presets.
//
// # Usage
//
//	presetctl generate -d "Password reset flow" --answers answers.yaml
//	presetctl generate --local -d "Reporting dashboard"
//	presetctl validate preset.json
//	presetctl fallback --format yaml
package main

import (
	"errors"
	"os"

	"github.com/AleutianAI/PresetForge/pkg/ux"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errInvalidPreset) {
			ux.NewPrinter(os.Stdout, os.Stderr, ux.DetectMode(os.Stderr)).Error(err.Error())
		}
		os.Exit(1)
	}
}

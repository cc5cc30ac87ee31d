// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/validation"
)

// errInvalidPreset is returned after the violations were already printed.
var errInvalidPreset = errors.New("preset failed validation")

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var minActivities, maxActivities int

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a preset file against the structural rules",
		Long: `Validates a preset stored as JSON or YAML. Validation runs locally;
no server is contacted. Exits non-zero when any rule is violated.

Examples:
  presetctl validate preset.json
  presetctl validate preset.yaml --min-activities 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var preset datatypes.PresetOutput
			if err := decodeFile(args[0], &preset); err != nil {
				return err
			}

			res := validation.NewWithBounds(minActivities, maxActivities).Validate(preset)
			if !opts.printer(cmd).Violations(res.Valid, res.Violations) {
				return errInvalidPreset
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minActivities, "min-activities", validation.DefaultMinActivities, "minimum activity count")
	cmd.Flags().IntVar(&maxActivities, "max-activities", validation.DefaultMaxActivities, "maximum activity count")
	return cmd
}

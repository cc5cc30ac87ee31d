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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/PresetForge/pkg/ux"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	server  string
	output  string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "presetctl",
		Short: "Generate and validate project activity presets",
		Long: `presetctl talks to a presetd server, or runs the pipeline locally,
to turn a project description into a validated list of activities.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("PRESETD_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:12310"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "presetd base URL")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "output mode: rich or plain (default: detect)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "overall request timeout")

	root.AddCommand(
		newGenerateCmd(opts),
		newValidateCmd(opts),
		newFallbackCmd(opts),
	)
	return root
}

// printer builds the output printer for cmd, honoring --output.
func (o *rootOptions) printer(cmd *cobra.Command) *ux.Printer {
	mode := ux.ParseMode(o.output)
	if o.output == "" {
		mode = ux.ModePlain
		if f, ok := cmd.OutOrStdout().(*os.File); ok {
			mode = ux.DetectMode(f)
		}
	}
	return ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
}

// decodeFile reads a JSON or YAML document into v. The extension picks the
// decoder; unknown extensions try JSON first.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s as YAML: %w", path, err)
		}
		return nil
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse %s as JSON: %w", path, err)
		}
		return nil
	}
	if jsonErr := json.Unmarshal(data, v); jsonErr == nil {
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: not JSON or YAML: %w", path, err)
	}
	return nil
}

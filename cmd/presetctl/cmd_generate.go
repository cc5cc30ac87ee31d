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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PresetForge/pkg/logging"
	"github.com/AleutianAI/PresetForge/services/llm"
	"github.com/AleutianAI/PresetForge/services/preset"
	"github.com/AleutianAI/PresetForge/services/preset/cache"
	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
	"github.com/AleutianAI/PresetForge/services/preset/pipeline"
)

type generateOptions struct {
	description     string
	descriptionFile string
	answersFile     string
	category        string
	userID          string
	local           bool
	rawJSON         bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a preset from a project description",
		Long: `Generates a preset for a project. By default the request is sent to the
presetd server given by --server; --local runs the pipeline in this process
using the same environment variables as presetd.

Examples:
  presetctl generate -d "Password reset with email tokens"
  presetctl generate --description-file brief.txt --answers answers.yaml
  presetctl generate --local -d "Reporting dashboard" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := opts.input()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
			defer cancel()

			var result datatypes.GenerateResult
			if opts.local {
				result, err = generateLocal(ctx, input)
			} else {
				result, err = generateRemote(ctx, http.DefaultClient, root.server, input)
			}
			if err != nil {
				return err
			}
			return opts.print(cmd, root, result)
		},
	}

	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "project description")
	cmd.Flags().StringVar(&opts.descriptionFile, "description-file", "", "read the description from a file")
	cmd.Flags().StringVarP(&opts.answersFile, "answers", "a", "", "questionnaire answers (JSON or YAML object)")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "tech category hint: FRONTEND, BACKEND or MULTI")
	cmd.Flags().StringVar(&opts.userID, "user", os.Getenv("USER"), "user id recorded with the request")
	cmd.Flags().BoolVar(&opts.local, "local", false, "run the pipeline in-process instead of calling presetd")
	cmd.Flags().BoolVar(&opts.rawJSON, "json", false, "print the full result as JSON")
	cmd.MarkFlagsMutuallyExclusive("description", "description-file")
	return cmd
}

// input assembles the pipeline input from the flags.
func (o *generateOptions) input() (datatypes.PipelineInput, error) {
	in := datatypes.PipelineInput{
		UserID:       o.userID,
		Description:  o.description,
		CategoryHint: strings.ToUpper(strings.TrimSpace(o.category)),
	}
	if o.descriptionFile != "" {
		data, err := os.ReadFile(o.descriptionFile)
		if err != nil {
			return in, fmt.Errorf("read description: %w", err)
		}
		in.Description = string(data)
	}
	if strings.TrimSpace(in.Description) == "" {
		return in, errors.New("a description is required (--description or --description-file)")
	}
	if o.answersFile != "" {
		if err := decodeFile(o.answersFile, &in.Answers); err != nil {
			return in, err
		}
	}
	in.EnsureDefaults()
	return in, nil
}

func (o *generateOptions) print(cmd *cobra.Command, root *rootOptions, result datatypes.GenerateResult) error {
	if o.rawJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	p := root.printer(cmd)
	switch {
	case result.Metadata.FallbackVersion != "" && !result.Success:
		p.Warning("generation failed, showing the fallback preset: " + result.Error)
	case result.Metadata.FallbackVersion != "":
		p.Warning("generation is disabled, showing the fallback preset")
	case result.Metadata.Cached:
		p.Success("preset served from cache")
	default:
		p.Success(fmt.Sprintf("preset generated in %dms (%s)",
			result.Metadata.GenerationTimeMs, strings.Join(result.Metadata.ModelPasses, ", ")))
	}
	for _, v := range result.Metadata.ValidationErrors {
		p.Warning("validation: " + v)
	}
	p.Preset(result.Preset)
	return nil
}

// generateRemote posts input to presetd.
func generateRemote(ctx context.Context, client *http.Client, server string, input datatypes.PipelineInput) (datatypes.GenerateResult, error) {
	var result datatypes.GenerateResult

	body, err := json.Marshal(input)
	if err != nil {
		return result, fmt.Errorf("encode request: %w", err)
	}
	url := strings.TrimRight(server, "/") + "/v1/presets/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return result, fmt.Errorf("contact presetd at %s: %w", server, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return result, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return result, fmt.Errorf("presetd returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return result, fmt.Errorf("presetd returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// generateLocal runs one request through an in-process pipeline built from
// the presetd environment variables.
func generateLocal(ctx context.Context, input datatypes.PipelineInput) (datatypes.GenerateResult, error) {
	cfg, err := preset.LoadConfigFromEnv()
	if err != nil {
		return datatypes.GenerateResult{}, fmt.Errorf("configuration: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelWarn,
		Format:  cfg.LogFormat,
		Service: "presetctl",
		Output:  os.Stderr,
	})
	defer logger.Close()

	var backend llm.LLMClient
	if cfg.Pipeline.GenerationEnabled {
		backend, err = llm.NewClient(cfg.LLMBackend)
		if err != nil {
			return datatypes.GenerateResult{}, fmt.Errorf("LLM backend: %w", err)
		}
	}

	connector, err := cache.ConnectorFromURL(cfg.CacheURL)
	if err != nil {
		return datatypes.GenerateResult{}, fmt.Errorf("cache: %w", err)
	}
	cacheCfg := cfg.Cache
	cacheCfg.Logger = logger.Slog()
	cacheClient := cache.NewClient(connector, cacheCfg)
	defer func() {
		if err := cacheClient.Close(); err != nil {
			logger.Slog().Warn("Cache close error", "error", err)
		}
	}()

	p, err := pipeline.New(cfg.Pipeline, pipeline.Dependencies{
		Backend: backend,
		Cache:   cacheClient,
		Logger:  logger.Slog().With(slog.String("mode", "local")),
	})
	if err != nil {
		return datatypes.GenerateResult{}, err
	}
	return p.GeneratePreset(ctx, input), nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generation

import (
	"encoding/json"
	"strings"

	"github.com/AleutianAI/PresetForge/services/preset/datatypes"
)

const skeletonSystemPrompt = `You are a software estimation assistant.
Produce a minimal activity skeleton for the project described by the user.

Respond with a single JSON object and nothing else:
{"success": true, "activities": [{"title": "...", "group": "ANALYSIS|DEV|TEST|OPS|GOVERNANCE", "estimatedHours": 4, "priority": "core|recommended|optional"}]}

Rules:
- Emit between 8 and 15 activities.
- estimatedHours is a number between 2 and 8.
- Do not include descriptions or any other field.
- If the request cannot be estimated, respond {"success": false, "activities": []}.`

const expandSystemPrompt = `You are a software estimation assistant.
Expand the activity skeleton into a complete estimation preset for the project described by the user.

Respond with a single JSON object and nothing else:
{"success": true, "preset": {
  "name": "...", "description": "...", "detailedDescription": "...",
  "techCategory": "FRONTEND|BACKEND|MULTI",
  "activities": [{
    "title": "...", "description": "...", "group": "ANALYSIS|DEV|TEST|OPS|GOVERNANCE",
    "estimatedHours": 4, "priority": "core|recommended|optional", "confidence": 0.8,
    "acceptanceCriteria": ["..."],
    "technicalDetails": {"suggestedFiles": ["..."], "suggestedCommands": ["..."], "suggestedTests": ["..."], "dependencies": ["..."]},
    "estimatedHoursJustification": "..."
  }],
  "driverValues": {"complexity": "LOW|MEDIUM|HIGH"},
  "riskCodes": ["..."],
  "reasoning": "...",
  "confidence": 0.8
}}

Rules for every activity:
- A description of 150 to 300 words, using bullet points for the concrete steps.
- At least 3 acceptance criteria.
- At least 2 suggested files, 2 suggested commands and 2 dependencies.
- Keep the skeleton's titles, groups and priorities unless they are clearly wrong.`

// buildExpandUserPrompt appends the skeleton to the enriched prompt. An
// empty skeleton asks the model to derive the activities itself.
func buildExpandUserPrompt(enrichedPrompt string, skeleton []datatypes.Activity) (string, error) {
	var b strings.Builder
	b.WriteString(enrichedPrompt)
	b.WriteString("\n\n")
	if len(skeleton) == 0 {
		b.WriteString("No skeleton is available. Derive 8 to 15 activities from the project description.")
		return b.String(), nil
	}
	raw, err := json.Marshal(skeleton)
	if err != nil {
		return "", err
	}
	b.WriteString("Skeleton activities:\n")
	b.Write(raw)
	return b.String(), nil
}

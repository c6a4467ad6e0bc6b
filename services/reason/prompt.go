// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reason

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/shopmind/services/reason/appconfig"
)

// renderAppPrompt substitutes the request into the app's prompt template.
//
// # Description
//
// The template owns the prompt shape; the gateway just fills placeholders.
// Placeholders the template does not use are ignored, and context fields the
// request did not send render as their empty value — a template never fails
// to render. An app with no template falls back to a minimal analysis
// prompt so the pipeline still runs.
//
// # Inputs
//
//   - cfg: The app's configuration.
//   - req: The request whose fields fill the template.
//   - categories: The effective category list (request override or config).
func renderAppPrompt(cfg appconfig.AppConfig, req AppReasoningRequest, categories []string) string {
	template := cfg.LLM.SystemPrompt
	if strings.TrimSpace(template) == "" {
		return fmt.Sprintf("Analyze this query and create execution plan: %s", req.UserQuery)
	}

	r := strings.NewReplacer(
		"{user_query}", req.UserQuery,
		"{available_categories}", fmt.Sprintf("%v", categories),
		"{conversation_history}", fmt.Sprintf("%v", req.ConversationHistory),
		"{mcp_tools_context}", fmt.Sprintf("%v", req.MCPToolsContext),
		"{ui_handlers_context}", fmt.Sprintf("%v", req.UIHandlersContext),
		"{current_filters}", fmt.Sprintf("%v", req.CurrentFilters),
		"{user_session}", fmt.Sprintf("%v", req.UserSession),
	)
	return r.Replace(template)
}

// renderGenericPrompt joins optional context and the instruction for the
// generic reasoning endpoint.
func renderGenericPrompt(context, instruction string) string {
	if strings.TrimSpace(context) == "" {
		return instruction
	}
	return context + "\n\n" + instruction
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import "log/slog"

// =============================================================================
// Execution Plan Types
// =============================================================================

// StepType classifies an execution step for the tool layer.
type StepType string

const (
	StepTypeSearch    StepType = "search"
	StepTypeUIAction  StepType = "ui_action"
	StepTypeDataFetch StepType = "data_fetch"
	StepTypeFilter    StepType = "filter"
)

// Tool names understood by the external tool-execution layer.
const (
	toolProductsList   = "products.list"
	toolProductsSearch = "products.search"
	toolUIHandle       = "ui.handle"
)

// genericHelpMessage answers general chat when the model supplied no reply.
const genericHelpMessage = "I can help you with shopping questions."

// Result formats the upstream orchestrator understands.
const (
	resultFormatProducts = "structured_product_response"
	resultFormatText     = "text_response"
)

// ExecutionStep is one tool invocation in a plan.
type ExecutionStep struct {
	// StepNumber is the 1-based execution order, unique within a plan.
	StepNumber int `json:"step_number"`

	// StepType classifies the step for the tool layer.
	StepType StepType `json:"step_type"`

	// ToolName is the namespaced tool identifier, e.g. "products.list".
	ToolName string `json:"tool_name"`

	// Description is a human-readable summary for logs and traces.
	Description string `json:"description"`

	// Parameters are passed verbatim to the tool. For search steps this is
	// the entire normalized analysis.
	Parameters map[string]any `json:"parameters"`

	// DependsOn lists step numbers that must complete first. Plans are
	// currently flat and single-step; the field exists for multi-step
	// extension.
	DependsOn []int `json:"depends_on"`

	// Optional marks steps whose failure does not abort the plan.
	Optional bool `json:"optional"`
}

// ExecutionPlan is the per-request plan handed back to the orchestrator.
//
// Steps and FallbackResponse are mutually exclusive by construction: a plan
// either invokes tools or answers directly, never both.
type ExecutionPlan struct {
	Analysis             QueryAnalysis   `json:"query_analysis"`
	Steps                []ExecutionStep `json:"steps"`
	FallbackResponse     string          `json:"fallback_response,omitempty"`
	ExpectedResultFormat string          `json:"expected_result_format"`
}

// =============================================================================
// Planner
// =============================================================================

// stepBuilder produces the steps for one intent kind.
type stepBuilder func(QueryAnalysis) []ExecutionStep

// Planner maps a normalized analysis to an execution plan.
//
// # Description
//
// Build is a pure function of the analysis: the dispatch table is fixed at
// construction and keyed by intent kind. Mixed intents (product search with
// ui_handlers populated) still produce exactly one search step — the
// ui_handlers ride inside that step's parameters for the downstream tool
// layer to act on after the search. Fanning a compound query out into two
// dependent steps is a known simplification deliberately not taken here.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type Planner struct {
	builders map[Kind]stepBuilder
	logger   *slog.Logger
}

// NewPlanner creates a Planner with the fixed intent dispatch table.
//
// # Inputs
//
//   - logger: Logger for unknown-intent warnings. May be nil.
func NewPlanner(logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{logger: logger}
	p.builders = map[Kind]stepBuilder{
		KindProductSearch: p.buildSearchSteps,
		KindUIAction:      p.buildUIActionSteps,
	}
	return p
}

// Build maps the analysis to an execution plan.
//
// # Description
//
// Dispatch on the intent kind:
//
//   - product_search      → one products.list search step
//   - ui_handling_action  → one ui.handle step
//   - general_chat        → no steps; fallback response is the model's
//     message, or a generic help string when absent
//   - anything else       → treated as general chat, with a warning
//
// # Outputs
//
//   - ExecutionPlan: Never nil steps and fallback together; deterministic
//     for equal inputs.
func (p *Planner) Build(a QueryAnalysis) ExecutionPlan {
	if a.Kind == KindUnknown {
		p.logger.Warn("unknown intent label, treating as general chat",
			slog.String("intent", a.Intent),
		)
	}

	build, ok := p.builders[a.Kind]
	if !ok {
		// General chat and unknown intents answer directly.
		msg := a.Message
		if msg == "" {
			msg = genericHelpMessage
		}
		return ExecutionPlan{
			Analysis:             a,
			Steps:                []ExecutionStep{},
			FallbackResponse:     msg,
			ExpectedResultFormat: resultFormatText,
		}
	}

	return ExecutionPlan{
		Analysis:             a,
		Steps:                build(a),
		ExpectedResultFormat: resultFormatProducts,
	}
}

// buildSearchSteps produces the single catalog search step. The entire
// normalized analysis travels as the step parameters — the planner does not
// re-derive what the model already extracted.
func (p *Planner) buildSearchSteps(a QueryAnalysis) []ExecutionStep {
	return []ExecutionStep{{
		StepNumber:  1,
		StepType:    StepTypeSearch,
		ToolName:    toolProductsList,
		Description: "Execute product search with model analysis",
		Parameters:  a.Raw,
		DependsOn:   []int{},
	}}
}

// buildUIActionSteps produces the single UI action step.
func (p *Planner) buildUIActionSteps(a QueryAnalysis) []ExecutionStep {
	query, _ := a.Raw["original_query"].(string)
	return []ExecutionStep{{
		StepNumber:  1,
		StepType:    StepTypeUIAction,
		ToolName:    toolUIHandle,
		Description: "Execute UI action",
		Parameters: map[string]any{
			"action":      a.Action,
			"ui_handlers": a.UIHandlers,
			"query":       query,
		},
		DependsOn: []int{},
	}}
}

// FallbackPlan is the terminal degradation when the oracle returned nothing
// usable at all: a single broad catalog search on the raw user query.
//
// # Description
//
// The /app-reason contract always returns a plan, never a parse error, so
// total recovery failure degrades to "search for whatever the user typed"
// at reduced confidence.
func FallbackPlan(userQuery string) ExecutionPlan {
	analysis := QueryAnalysis{
		Kind:         KindProductSearch,
		Intent:       intentProductSearch,
		Confidence:   0.7,
		Categories:   []string{},
		ProductItems: []string{userQuery},
		UIHandlers:   []string{},
		Variants:     []string{},
	}
	return ExecutionPlan{
		Analysis: analysis,
		Steps: []ExecutionStep{{
			StepNumber:  1,
			StepType:    StepTypeDataFetch,
			ToolName:    toolProductsSearch,
			Description: "Search for: " + userQuery,
			Parameters:  map[string]any{"query": userQuery, "limit": 10},
			DependsOn:   []int{},
		}},
		ExpectedResultFormat: resultFormatProducts,
	}
}

// MessagePlan is a zero-step plan that answers with msg directly. Used for
// out-of-scope queries (the app's configured fallback message) and unknown
// apps.
func MessagePlan(a QueryAnalysis, msg string) ExecutionPlan {
	return ExecutionPlan{
		Analysis:             a,
		Steps:                []ExecutionStep{},
		FallbackResponse:     msg,
		ExpectedResultFormat: resultFormatText,
	}
}

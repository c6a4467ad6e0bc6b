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

import "github.com/AleutianAI/shopmind/services/reason/intent"

// =============================================================================
// Request Types
// =============================================================================

// ReasoningRequest is the body of POST /v1/reason.
type ReasoningRequest struct {
	// Instruction is the prompt for the model.
	Instruction string `json:"instruction" binding:"required"`

	// Context is optional framing text prepended to the instruction.
	Context string `json:"context,omitempty"`

	// Parameters are generation overrides: max_tokens, temperature.
	Parameters map[string]any `json:"parameters,omitempty"`

	// TaskType labels the call for the response; defaults to "reasoning".
	TaskType string `json:"task_type,omitempty"`
}

// AppReasoningRequest is the body of POST /v1/app-reason. Context fields are
// passed through into the app's prompt template; the gateway does not
// interpret them.
type AppReasoningRequest struct {
	AppName   string `json:"app_name" binding:"required"`
	UserQuery string `json:"user_query" binding:"required"`

	// AvailableCategories overrides the app config's category list for this
	// request. The orchestrator sends the live catalog categories here.
	AvailableCategories []string `json:"available_categories,omitempty"`

	ConversationHistory []map[string]any `json:"conversation_history,omitempty"`
	MCPToolsContext     []map[string]any `json:"mcp_tools_context,omitempty"`
	UIHandlersContext   []map[string]any `json:"ui_handlers_context,omitempty"`
	CurrentFilters      map[string]any   `json:"current_filters,omitempty"`
	UserSession         map[string]any   `json:"user_session,omitempty"`
}

// ImageReasoningRequest is the body of POST /v1/reason-image.
type ImageReasoningRequest struct {
	// Instruction says what to analyze about the image.
	Instruction string `json:"instruction" binding:"required"`

	// ImageData is the base64-encoded image payload.
	ImageData string `json:"image_data" binding:"required"`

	// ImageFormat is informational ("jpeg", "png"); the actual content type
	// is sniffed from the decoded bytes.
	ImageFormat string `json:"image_format,omitempty"`

	Context    string         `json:"context,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// ReasoningResponse is the response of /v1/reason and /v1/reason-image.
type ReasoningResponse struct {
	Result           string   `json:"result"`
	Confidence       *float64 `json:"confidence,omitempty"`
	ReasoningSteps   []string `json:"reasoning_steps,omitempty"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
	ModelUsed        string   `json:"model_used"`
	TaskType         string   `json:"task_type"`
}

// AppReasoningResponse is the response of /v1/app-reason.
//
// QueryAnalysis is the normalized analysis object as the orchestrator
// consumes it: the model's parsed fields plus any defaults the gateway
// filled in, with unknown model-emitted fields preserved.
type AppReasoningResponse struct {
	QueryAnalysis        map[string]any         `json:"query_analysis"`
	ExecutionPlan        []intent.ExecutionStep `json:"execution_plan"`
	FallbackResponse     string                 `json:"fallback_response,omitempty"`
	ExpectedResultFormat string                 `json:"expected_result_format"`
	ProcessingTimeMS     float64                `json:"processing_time_ms"`
	ModelUsed            string                 `json:"model_used"`
	AppConfigUsed        string                 `json:"app_config_used"`
}

// HealthResponse is the response of GET /v1/health.
type HealthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	ModelsLoaded  []string           `json:"models_loaded"`
	MemoryUsage   map[string]float64 `json:"memory_usage,omitempty"`
	UptimeSeconds float64            `json:"uptime_seconds"`
}

// AppInfo summarizes one configured app for GET /v1/apps.
type AppInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

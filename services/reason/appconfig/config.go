// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package appconfig loads and serves the per-app assistant configurations:
// the category list, the analysis prompt template, generation parameters,
// and the out-of-scope fallback message. Each upstream storefront app gets
// one YAML file; a default "nextshop" config is embedded so the gateway is
// usable with no configs directory at all.
package appconfig

import (
	_ "embed"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Config
// =============================================================================

//go:embed nextshop.yaml
var defaultNextshopYAML []byte

// =============================================================================
// Config Types
// =============================================================================

// GenerationSettings are the generation parameters for the analysis call.
type GenerationSettings struct {
	// MaxTokens caps the analysis completion. Small on purpose: the JSON
	// analysis is compact and small models degrade on long generations.
	// Zero takes the default (300).
	MaxTokens int `yaml:"max_tokens" json:"max_tokens" validate:"gte=0,lte=4096"`

	// Temperature for the analysis call. Kept low for deterministic JSON.
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
}

// LLMSettings configures how the app's queries are put to the model.
type LLMSettings struct {
	// SystemPrompt is the analysis prompt template. Placeholders of the
	// form {user_query}, {available_categories}, {conversation_history},
	// {mcp_tools_context}, {ui_handlers_context}, {current_filters} and
	// {user_session} are substituted per request.
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt"`

	// ContextMessage is an optional system-level framing message.
	ContextMessage string `yaml:"context_message" json:"context_message,omitempty"`

	// Parameters are the generation parameters for the analysis call.
	Parameters GenerationSettings `yaml:"parameters" json:"parameters"`
}

// AppConfig is one storefront app's assistant configuration.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type AppConfig struct {
	// AppName identifies the app; requests select a config by this name.
	AppName string `yaml:"app_name" json:"app_name" validate:"required"`

	// AppVersion is informational.
	AppVersion string `yaml:"app_version" json:"app_version,omitempty"`

	// Description is informational.
	Description string `yaml:"description" json:"description,omitempty"`

	// Categories is the app's full catalog category list, used both in the
	// prompt and as the "search everything" fallback.
	Categories []string `yaml:"categories" json:"categories" validate:"required,min=1"`

	// AIScope describes what the assistant should help with.
	AIScope string `yaml:"ai_scope" json:"ai_scope,omitempty"`

	// FallbackMessage answers queries the model judged out of scope.
	FallbackMessage string `yaml:"fallback_message" json:"fallback_message,omitempty"`

	// MaxSteps bounds plan length for future multi-step plans.
	MaxSteps int `yaml:"max_steps" json:"max_steps"`

	// LLM configures prompt template and generation parameters.
	LLM LLMSettings `yaml:"llm" json:"llm"`
}

// parseConfig decodes and validates one YAML config document.
func parseConfig(data []byte, validate *validator.Validate) (AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse app config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("validate app config %q: %w", cfg.AppName, err)
	}
	if cfg.LLM.Parameters.MaxTokens == 0 {
		cfg.LLM.Parameters.MaxTokens = 300
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 4
	}
	return cfg, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// =============================================================================
// Ollama Adapters
// =============================================================================

// OllamaCompletion implements CompletionClient against a local Ollama
// instance via langchaingo.
//
// # Description
//
// The gateway runs small local models (a 3B-class instruct model for query
// analysis); Ollama owns weight loading, quantization, and device placement.
// This adapter is deliberately thin — one prompt, one completion, no
// streaming, no tool calls.
//
// # Thread Safety
//
// Safe for concurrent use. Concurrency across requests is bounded by the
// InferencePool, not here; local CPU inference serializes poorly beyond a
// couple of in-flight calls.
type OllamaCompletion struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaCompletion creates a completion client for the given server and
// model.
//
// # Inputs
//
//   - serverURL: Base URL of the Ollama server, e.g. "http://localhost:11434".
//   - model: Model identifier, e.g. "qwen2.5:3b-instruct".
//
// # Outputs
//
//   - *OllamaCompletion: Ready-to-use client.
//   - error: Non-nil if the client cannot be constructed.
func NewOllamaCompletion(serverURL, model string) (*OllamaCompletion, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama completion: model must not be empty")
	}
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama completion client: %w", err)
	}
	return &OllamaCompletion{llm: llm, model: model}, nil
}

// Complete implements CompletionClient.
func (c *OllamaCompletion) Complete(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	opts := generationOptions(params)
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("ollama completion (%s): %w", c.model, err)
	}
	return out, nil
}

// Model implements CompletionClient.
func (c *OllamaCompletion) Model() string { return c.model }

// OllamaVision implements VisionClient against an Ollama multimodal model
// (llava-class).
//
// # Thread Safety
//
// Safe for concurrent use.
type OllamaVision struct {
	llm   *ollama.LLM
	model string
}

// NewOllamaVision creates a captioning client for the given server and
// multimodal model.
func NewOllamaVision(serverURL, model string) (*OllamaVision, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama vision: model must not be empty")
	}
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama vision client: %w", err)
	}
	return &OllamaVision{llm: llm, model: model}, nil
}

// Caption implements VisionClient. The image travels as a binary content
// part alongside the instruction text.
func (v *OllamaVision) Caption(ctx context.Context, instruction string, image []byte, params GenerationParams) (string, error) {
	content := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(http.DetectContentType(image), image),
			llms.TextPart(instruction),
		},
	}}

	resp, err := v.llm.GenerateContent(ctx, content, generationOptions(params)...)
	if err != nil {
		return "", fmt.Errorf("ollama caption (%s): %w", v.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ollama caption (%s): empty response", v.model)
	}
	return resp.Choices[0].Content, nil
}

// Model implements VisionClient.
func (v *OllamaVision) Model() string { return v.model }

// generationOptions translates GenerationParams into langchaingo call
// options, omitting unset fields so provider defaults apply.
func generationOptions(params GenerationParams) []llms.CallOption {
	var opts []llms.CallOption
	if params.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(params.MaxTokens))
	}
	if params.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(params.Temperature))
	}
	return opts
}

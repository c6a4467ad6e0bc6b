// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reason is the inference gateway for the shopping assistant: it
// turns natural-language queries (and product images) into either free-text
// reasoning or a structured execution plan the orchestrator can run against
// catalog tools. Small local models emit unreliable JSON; the pipeline here
// treats extraction, repair, and fallback as normal operation, so the
// /app-reason contract always yields a plan, never a parse error.
package reason

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/shopmind/services/reason/appconfig"
	"github.com/AleutianAI/shopmind/services/reason/cache"
	"github.com/AleutianAI/shopmind/services/reason/intent"
	"github.com/AleutianAI/shopmind/services/reason/jsonrecover"
	"github.com/AleutianAI/shopmind/services/reason/providers"
)

// Version is the gateway version reported by /health.
const Version = "1.0.0"

// =============================================================================
// Service Configuration
// =============================================================================

// ServiceConfig bounds the reasoning endpoints.
type ServiceConfig struct {
	// ReasonTimeout bounds text reasoning calls. Local CPU inference on a
	// 3B-class model can legitimately take minutes under load.
	ReasonTimeout time.Duration

	// ImageTimeout bounds image captioning calls; vision models are slower.
	ImageTimeout time.Duration

	// MaxQueryBytes caps the user query length.
	MaxQueryBytes int

	// MaxImageBytes caps the decoded image payload.
	MaxImageBytes int

	// MinImageBytes rejects payloads too small to be a real image.
	MinImageBytes int
}

// DefaultServiceConfig returns the production defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ReasonTimeout: 300 * time.Second,
		ImageTimeout:  600 * time.Second,
		MaxQueryBytes: 8 * 1024,
		MaxImageBytes: 10 * 1024 * 1024,
		MinImageBytes: 100,
	}
}

// =============================================================================
// Service
// =============================================================================

// Service implements the reasoning pipeline.
//
// # Thread Safety
//
// Safe for concurrent use. All mutable state lives in the collaborators,
// which carry their own synchronization.
type Service struct {
	cfg        ServiceConfig
	completion providers.CompletionClient
	vision     providers.VisionClient
	apps       *appconfig.Manager
	cache      cache.Store
	planner    *intent.Planner
	logger     *slog.Logger
	startTime  time.Time
}

// NewService wires the reasoning pipeline.
//
// # Inputs
//
//   - cfg: Endpoint bounds; zero fields take defaults.
//   - completion: Completion oracle, typically pool-wrapped. May be nil;
//     reasoning endpoints then report the model unavailable.
//   - vision: Captioning oracle. May be nil; /reason-image then reports
//     the model unavailable.
//   - apps: App configuration manager. Must not be nil.
//   - store: Completion cache. May be nil to disable caching.
//   - logger: Service logger. May be nil.
func NewService(
	cfg ServiceConfig,
	completion providers.CompletionClient,
	vision providers.VisionClient,
	apps *appconfig.Manager,
	store cache.Store,
	logger *slog.Logger,
) *Service {
	if apps == nil {
		panic("NewService: apps must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServiceConfig()
	if cfg.ReasonTimeout <= 0 {
		cfg.ReasonTimeout = def.ReasonTimeout
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = def.ImageTimeout
	}
	if cfg.MaxQueryBytes <= 0 {
		cfg.MaxQueryBytes = def.MaxQueryBytes
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = def.MaxImageBytes
	}
	if cfg.MinImageBytes <= 0 {
		cfg.MinImageBytes = def.MinImageBytes
	}
	return &Service{
		cfg:        cfg,
		completion: completion,
		vision:     vision,
		apps:       apps,
		cache:      store,
		planner:    intent.NewPlanner(logger),
		logger:     logger,
		startTime:  time.Now(),
	}
}

// Apps exposes the app configuration manager for the config endpoints.
func (s *Service) Apps() *appconfig.Manager { return s.apps }

// =============================================================================
// Generic Reasoning
// =============================================================================

// GenericReasoning handles POST /v1/reason: free-text completion with no
// JSON recovery.
func (s *Service) GenericReasoning(ctx context.Context, req ReasoningRequest) (ReasoningResponse, error) {
	started := time.Now()
	var err error
	defer func() { recordRequestMetrics("reason", started, err) }()

	ctx, span := otel.Tracer(reasonTracerName).Start(ctx, "reason.Service.GenericReasoning",
		trace.WithAttributes(
			attribute.String("task_type", taskTypeOrDefault(req.TaskType, "reasoning")),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.Instruction) == "" {
		err = &ValidationError{Field: "instruction", Reason: "must not be empty"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}
	if len(req.Instruction) > s.cfg.MaxQueryBytes {
		err = &ValidationError{Field: "instruction", Reason: fmt.Sprintf("exceeds %d bytes", s.cfg.MaxQueryBytes)}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}
	if s.completion == nil {
		err = &OracleUnavailableError{Kind: "completion"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}

	prompt := renderGenericPrompt(req.Context, req.Instruction)
	params := paramsFromMap(req.Parameters)

	var result string
	result, err = s.callCompletion(ctx, prompt, params, s.cfg.ReasonTimeout)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}

	return ReasoningResponse{
		Result:           result,
		ProcessingTimeMS: msSince(started),
		ModelUsed:        s.completion.Model(),
		TaskType:         taskTypeOrDefault(req.TaskType, "reasoning"),
	}, nil
}

// =============================================================================
// App Reasoning
// =============================================================================

// AppReasoning handles POST /v1/app-reason: the full recovery pipeline from
// raw model text to a normalized analysis and execution plan.
//
// # Description
//
// Pipeline: render the app's prompt, ask the completion oracle (through the
// cache), extract the first JSON object from whatever came back, repair it
// if truncated, fill defaults, gate on scope, and build the plan. The only
// errors this method returns are request validation, oracle timeout, and
// oracle absence — model garbage is recovered, and total recovery failure
// degrades to a broad catalog search on the raw query.
func (s *Service) AppReasoning(ctx context.Context, req AppReasoningRequest) (AppReasoningResponse, error) {
	started := time.Now()
	var err error
	defer func() { recordRequestMetrics("app_reason", started, err) }()

	ctx, span := otel.Tracer(reasonTracerName).Start(ctx, "reason.Service.AppReasoning",
		trace.WithAttributes(
			attribute.String("app", req.AppName),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.AppName) == "" {
		err = &ValidationError{Field: "app_name", Reason: "must not be empty"}
		span.SetStatus(codes.Error, err.Error())
		return AppReasoningResponse{}, err
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		err = &ValidationError{Field: "user_query", Reason: "must not be empty"}
		span.SetStatus(codes.Error, err.Error())
		return AppReasoningResponse{}, err
	}
	if len(req.UserQuery) > s.cfg.MaxQueryBytes {
		err = &ValidationError{Field: "user_query", Reason: fmt.Sprintf("exceeds %d bytes", s.cfg.MaxQueryBytes)}
		span.SetStatus(codes.Error, err.Error())
		return AppReasoningResponse{}, err
	}

	cfg, ok := s.apps.Get(req.AppName)
	if !ok {
		err = &ValidationError{Field: "app_name", Reason: fmt.Sprintf("app %q is not configured", req.AppName)}
		span.SetStatus(codes.Error, err.Error())
		return AppReasoningResponse{}, err
	}
	if s.completion == nil {
		err = &OracleUnavailableError{Kind: "completion"}
		span.SetStatus(codes.Error, err.Error())
		return AppReasoningResponse{}, err
	}

	logger := s.logger.With(slog.String("app", req.AppName))

	categories := req.AvailableCategories
	if len(categories) == 0 {
		categories = cfg.Categories
	}

	prompt := renderAppPrompt(cfg, req, categories)
	params := providers.GenerationParams{
		MaxTokens:   cfg.LLM.Parameters.MaxTokens,
		Temperature: cfg.LLM.Parameters.Temperature,
	}

	raw, oracleErr := s.completeWithCache(ctx, prompt, params)
	if oracleErr != nil {
		var timeoutErr *OracleTimeoutError
		if errors.As(oracleErr, &timeoutErr) {
			// Timeouts are client-visible; the fallback plan is reserved
			// for garbage output, not an absent oracle answer.
			err = oracleErr
			span.SetStatus(codes.Error, err.Error())
			return AppReasoningResponse{}, err
		}
		// Any other oracle failure is treated as empty output and recovered.
		logger.Error("completion oracle failed, recovering with fallback plan",
			slog.Any("error", oracleErr),
		)
		raw = ""
	}

	plan := s.recoverPlan(logger, raw, req.UserQuery, cfg, categories)
	span.SetAttributes(
		attribute.String("intent", plan.Analysis.Intent),
		attribute.Int("steps", len(plan.Steps)),
	)

	return AppReasoningResponse{
		QueryAnalysis:        analysisMap(plan.Analysis),
		ExecutionPlan:        plan.Steps,
		FallbackResponse:     plan.FallbackResponse,
		ExpectedResultFormat: plan.ExpectedResultFormat,
		ProcessingTimeMS:     msSince(started),
		ModelUsed:            s.completion.Model(),
		AppConfigUsed:        cfg.AppName,
	}, nil
}

// recoverPlan runs the recovery pipeline on raw model output.
//
// Extraction and repair never abort: every path lands on exactly one of
// parsed, repaired, or fallback.
func (s *Service) recoverPlan(
	logger *slog.Logger,
	raw string,
	userQuery string,
	cfg appconfig.AppConfig,
	categories []string,
) intent.ExecutionPlan {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		logger.Warn("oracle returned empty output, using fallback plan")
		recoveryOutcomesTotal.WithLabelValues(outcomeFallback).Inc()
		return intent.FallbackPlan(userQuery)
	}

	fragment, complete := jsonrecover.ExtractFirstObject(raw)
	if fragment == "" {
		logger.Warn("no JSON object in oracle output, using fallback plan",
			slog.String("raw", safeLogString(truncateForLog(raw, 200))),
		)
		recoveryOutcomesTotal.WithLabelValues(outcomeFallback).Inc()
		return intent.FallbackPlan(userQuery)
	}

	var parsed map[string]any
	outcome := outcomeParsed
	if uerr := json.Unmarshal([]byte(fragment), &parsed); uerr != nil {
		repaired := jsonrecover.Repair(fragment)
		if repaired == "{}" && fragment != "{}" {
			logger.Warn("oracle output unrecoverable, using fallback plan",
				slog.Bool("complete", complete),
				slog.String("fragment", safeLogString(truncateForLog(fragment, 200))),
			)
			recoveryOutcomesTotal.WithLabelValues(outcomeFallback).Inc()
			return intent.FallbackPlan(userQuery)
		}
		if uerr := json.Unmarshal([]byte(repaired), &parsed); uerr != nil {
			// Repair guarantees valid JSON; an object that still fails to
			// decode means it was not an object at all.
			recoveryOutcomesTotal.WithLabelValues(outcomeFallback).Inc()
			return intent.FallbackPlan(userQuery)
		}
		outcome = outcomeRepaired
		logger.Info("repaired truncated oracle output",
			slog.Int("fragment_bytes", len(fragment)),
		)
	}
	recoveryOutcomesTotal.WithLabelValues(outcome).Inc()

	analysis := intent.Normalize(parsed, categories)
	analysis.Raw["original_query"] = userQuery

	if !analysis.InScope() {
		logger.Info("query gated out of scope",
			slog.String("intent", analysis.Intent),
			slog.Float64("confidence", analysis.Confidence),
		)
		msg := cfg.FallbackMessage
		if msg == "" {
			msg = analysis.Message
		}
		return intent.MessagePlan(analysis, msg)
	}

	return s.planner.Build(analysis)
}

// =============================================================================
// Image Reasoning
// =============================================================================

// ImageReasoning handles POST /v1/reason-image: caption a product image.
func (s *Service) ImageReasoning(ctx context.Context, req ImageReasoningRequest) (ReasoningResponse, error) {
	started := time.Now()
	var err error
	defer func() { recordRequestMetrics("reason_image", started, err) }()

	ctx, span := otel.Tracer(reasonTracerName).Start(ctx, "reason.Service.ImageReasoning",
		trace.WithAttributes(
			attribute.String("image_format", req.ImageFormat),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.Instruction) == "" {
		err = &ValidationError{Field: "instruction", Reason: "must not be empty"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}
	if s.vision == nil {
		err = &OracleUnavailableError{Kind: "vision"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}

	image, decErr := base64.StdEncoding.DecodeString(req.ImageData)
	if decErr != nil {
		err = &ValidationError{Field: "image_data", Reason: "not valid base64"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}
	if len(image) < s.cfg.MinImageBytes {
		err = &ValidationError{Field: "image_data", Reason: "too small to be an image"}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}
	if len(image) > s.cfg.MaxImageBytes {
		err = &ValidationError{Field: "image_data", Reason: fmt.Sprintf("exceeds %d bytes", s.cfg.MaxImageBytes)}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ImageTimeout)
	defer cancel()

	instruction := renderGenericPrompt(req.Context, req.Instruction)
	callStart := time.Now()
	result, capErr := s.vision.Caption(callCtx, instruction, image, paramsFromMap(req.Parameters))
	recordOracleCall("caption", callStart, capErr)
	if capErr != nil {
		if errors.Is(capErr, context.DeadlineExceeded) {
			err = &OracleTimeoutError{Model: s.vision.Model(), Timeout: s.cfg.ImageTimeout}
		} else {
			err = fmt.Errorf("image reasoning: %w", capErr)
		}
		span.SetStatus(codes.Error, err.Error())
		return ReasoningResponse{}, err
	}

	return ReasoningResponse{
		Result:           result,
		ProcessingTimeMS: msSince(started),
		ModelUsed:        s.vision.Model(),
		TaskType:         "image_reasoning",
	}, nil
}

// =============================================================================
// Health
// =============================================================================

// Health reports gateway liveness and the configured models.
func (s *Service) Health() HealthResponse {
	models := []string{}
	if s.completion != nil {
		models = append(models, s.completion.Model())
	}
	if s.vision != nil {
		models = append(models, s.vision.Model())
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return HealthResponse{
		Status:       "healthy",
		Version:      Version,
		ModelsLoaded: models,
		MemoryUsage: map[string]float64{
			"alloc_mb":       float64(mem.Alloc) / (1024 * 1024),
			"sys_mb":         float64(mem.Sys) / (1024 * 1024),
			"num_goroutines": float64(runtime.NumGoroutine()),
		},
		UptimeSeconds: time.Since(s.startTime).Seconds(),
	}
}

// =============================================================================
// Oracle Helpers
// =============================================================================

// completeWithCache asks the completion oracle, short-circuiting through the
// cache when one is configured. Cache failures are logged and ignored.
func (s *Service) completeWithCache(ctx context.Context, prompt string, params providers.GenerationParams) (string, error) {
	var key string
	if s.cache != nil {
		key = cache.Key(s.completion.Model(), prompt, params.MaxTokens, params.Temperature)
		cached, err := s.cache.Load(ctx, key)
		switch {
		case err != nil:
			cacheEventsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("completion cache load failed", slog.Any("error", err))
		case cached != "":
			cacheEventsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			cacheEventsTotal.WithLabelValues("miss").Inc()
		}
	}

	raw, err := s.callCompletion(ctx, prompt, params, s.cfg.ReasonTimeout)
	if err != nil {
		return "", err
	}

	if s.cache != nil && raw != "" {
		if err := s.cache.Save(ctx, key, raw); err != nil {
			cacheEventsTotal.WithLabelValues("error").Inc()
			s.logger.Warn("completion cache save failed", slog.Any("error", err))
		}
	}
	return raw, nil
}

// callCompletion runs one bounded completion call, mapping deadline expiry
// to OracleTimeoutError.
func (s *Service) callCompletion(ctx context.Context, prompt string, params providers.GenerationParams, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	callStart := time.Now()
	raw, err := s.completion.Complete(callCtx, prompt, params)
	recordOracleCall("completion", callStart, err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &OracleTimeoutError{Model: s.completion.Model(), Timeout: timeout}
		}
		return "", fmt.Errorf("completion oracle: %w", err)
	}
	return raw, nil
}

// =============================================================================
// Small Helpers
// =============================================================================

// analysisMap returns the analysis as the wire map the orchestrator consumes.
func analysisMap(a intent.QueryAnalysis) map[string]any {
	if a.Raw != nil {
		return a.Raw
	}
	// Fallback-plan analyses carry no raw map; synthesize the canonical one.
	return map[string]any{
		"intent":        a.Intent,
		"confidence":    a.Confidence,
		"categories":    a.Categories,
		"product_items": a.ProductItems,
		"ui_handlers":   a.UIHandlers,
		"variants":      a.Variants,
		"constraints":   map[string]any{},
	}
}

// paramsFromMap decodes loosely typed request parameters.
func paramsFromMap(m map[string]any) providers.GenerationParams {
	var p providers.GenerationParams
	if v, ok := m["max_tokens"].(float64); ok && v > 0 {
		p.MaxTokens = int(v)
	}
	if v, ok := m["temperature"].(float64); ok && v > 0 {
		p.Temperature = v
	}
	return p
}

func taskTypeOrDefault(t, def string) string {
	if t == "" {
		return def
	}
	return t
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

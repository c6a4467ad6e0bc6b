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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers binds the reasoning service to Gin.
//
// # Thread Safety
//
// Safe for concurrent use; handlers hold no per-request state.
type Handlers struct {
	service *Service
}

// NewHandlers creates the handler set for the given service.
func NewHandlers(service *Service) *Handlers {
	if service == nil {
		panic("NewHandlers: service must not be nil")
	}
	return &Handlers{service: service}
}

// getOrCreateRequestID returns the inbound X-Request-ID, minting one when
// the client did not send any. The ID is echoed on the response so callers
// can correlate logs.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// writeError maps service errors to the HTTP error taxonomy.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *ValidationError
	var unavailableErr *OracleUnavailableError
	var timeoutErr *OracleTimeoutError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: validationErr.Error(),
			Code:  "VALIDATION_ERROR",
		})
	case errors.As(err, &unavailableErr):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: unavailableErr.Error(),
			Code:  "MODEL_UNAVAILABLE",
		})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Error: timeoutErr.Error(),
			Code:  "MODEL_TIMEOUT",
		})
	default:
		logger.Error("request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  "INTERNAL_ERROR",
		})
	}
}

// HandleReason handles POST /v1/reason.
//
// Response:
//
//	200 OK: ReasoningResponse
//	400 Bad Request: Missing or oversized instruction
//	408 Request Timeout: Model did not answer within the endpoint deadline
//	503 Service Unavailable: No completion model configured
func (h *Handlers) HandleReason(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReason")

	var req ReasoningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_BODY",
		})
		return
	}

	resp, err := h.service.GenericReasoning(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("reasoning complete",
		slog.String("task_type", resp.TaskType),
		slog.Float64("processing_time_ms", resp.ProcessingTimeMS),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleAppReason handles POST /v1/app-reason.
//
// Response:
//
//	200 OK: AppReasoningResponse — always carries a plan; recovery failures
//	        degrade to a broad search, never a 5xx
//	400 Bad Request: Missing app_name/user_query, or unknown app
//	408 Request Timeout: Model did not answer within the endpoint deadline
//	503 Service Unavailable: No completion model configured
func (h *Handlers) HandleAppReason(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAppReason")

	var req AppReasoningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_BODY",
		})
		return
	}

	resp, err := h.service.AppReasoning(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("app reasoning complete",
		slog.String("app", resp.AppConfigUsed),
		slog.Int("steps", len(resp.ExecutionPlan)),
		slog.Float64("processing_time_ms", resp.ProcessingTimeMS),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleReasonImage handles POST /v1/reason-image.
//
// Response:
//
//	200 OK: ReasoningResponse with task_type "image_reasoning"
//	400 Bad Request: Missing instruction or undecodable/out-of-bounds image
//	408 Request Timeout: Vision model did not answer within the deadline
//	503 Service Unavailable: No vision model configured
func (h *Handlers) HandleReasonImage(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReasonImage")

	var req ImageReasoningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_BODY",
		})
		return
	}

	resp, err := h.service.ImageReasoning(c.Request.Context(), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("image reasoning complete",
		slog.Float64("processing_time_ms", resp.ProcessingTimeMS),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health())
}

// HandleListApps handles GET /v1/apps.
func (h *Handlers) HandleListApps(c *gin.Context) {
	apps := h.service.Apps()
	infos := make([]AppInfo, 0)
	for _, name := range apps.List() {
		cfg, ok := apps.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, AppInfo{
			Name:        cfg.AppName,
			Version:     cfg.AppVersion,
			Description: cfg.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"apps": infos})
}

// HandleAppConfig handles GET /v1/apps/:name/config.
func (h *Handlers) HandleAppConfig(c *gin.Context) {
	name := c.Param("name")
	cfg, ok := h.service.Apps().Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "app not found: " + name,
			Code:  "APP_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// HandleRoot handles GET / with a service banner.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "shopmind",
		"version": Version,
		"status":  "running",
	})
}

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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/shopmind/services/reason/appconfig"
	"github.com/AleutianAI/shopmind/services/reason/providers"
)

func newTestRouter(t *testing.T, completion *fakeCompletion) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// A nil *fakeCompletion must become a nil interface, not a typed nil.
	var client providers.CompletionClient
	if completion != nil {
		client = completion
	}
	svc := NewService(DefaultServiceConfig(), client, nil, appconfig.NewManager(nil), nil, nil)
	handlers := NewHandlers(svc)

	router := gin.New()
	router.GET("/", handlers.HandleRoot)
	RegisterRoutes(router.Group("/v1"), handlers)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{})

	w := doJSON(t, router, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, []string{"fake-3b-instruct"}, resp.ModelsLoaded)
}

func TestHandleAppReason_OK(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.9, "categories": ["electronics"]}`}
	router := newTestRouter(t, oracle)

	w := doJSON(t, router, http.MethodPost, "/v1/app-reason", AppReasoningRequest{
		AppName:   "nextshop",
		UserQuery: "show me electronics",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp AppReasoningResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.ExecutionPlan, 1)
	assert.Equal(t, "products.list", resp.ExecutionPlan[0].ToolName)
	assert.Equal(t, "structured_product_response", resp.ExpectedResultFormat)
}

func TestHandleAppReason_EchoesRequestID(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "product_search"}`}
	router := newTestRouter(t, oracle)

	raw, _ := json.Marshal(AppReasoningRequest{AppName: "nextshop", UserQuery: "q"})
	req := httptest.NewRequest(http.MethodPost, "/v1/app-reason", bytes.NewReader(raw))
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestHandleAppReason_MissingFields(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{output: "{}"})

	w := doJSON(t, router, http.MethodPost, "/v1/app-reason", map[string]any{"user_query": "q"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_BODY", resp.Code)
}

func TestHandleAppReason_UnknownApp(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{output: "{}"})

	w := doJSON(t, router, http.MethodPost, "/v1/app-reason", AppReasoningRequest{
		AppName:   "nosuchapp",
		UserQuery: "q",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestHandleReason_NoModel(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/v1/reason", ReasoningRequest{Instruction: "hello"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "MODEL_UNAVAILABLE", resp.Code)
}

func TestHandleReasonImage_NoVisionModel(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{})

	w := doJSON(t, router, http.MethodPost, "/v1/reason-image", ImageReasoningRequest{
		Instruction: "describe",
		ImageData:   testImagePayload(),
	})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleListApps(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{})

	w := doJSON(t, router, http.MethodGet, "/v1/apps", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Apps []AppInfo `json:"apps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Apps, 1)
	assert.Equal(t, "nextshop", resp.Apps[0].Name)
}

func TestHandleAppConfig(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{})

	w := doJSON(t, router, http.MethodGet, "/v1/apps/nextshop/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg appconfig.AppConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "nextshop", cfg.AppName)
	assert.NotEmpty(t, cfg.Categories)

	w = doJSON(t, router, http.MethodGet, "/v1/apps/ghost/config", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRoot(t *testing.T) {
	router := newTestRouter(t, &fakeCompletion{})

	w := doJSON(t, router, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shopmind")
}

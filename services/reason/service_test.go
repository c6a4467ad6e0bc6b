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
	"context"
	"encoding/base64"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/shopmind/services/reason/appconfig"
	"github.com/AleutianAI/shopmind/services/reason/cache"
	"github.com/AleutianAI/shopmind/services/reason/providers"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeCompletion is a scripted completion oracle.
type fakeCompletion struct {
	output string
	err    error
	calls  atomic.Int64
}

func (f *fakeCompletion) Complete(ctx context.Context, prompt string, params providers.GenerationParams) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeCompletion) Model() string { return "fake-3b-instruct" }

// fakeVision is a scripted captioning oracle.
type fakeVision struct {
	output string
	err    error
}

func (f *fakeVision) Caption(ctx context.Context, instruction string, image []byte, params providers.GenerationParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func (f *fakeVision) Model() string { return "fake-llava" }

func newTestService(t *testing.T, completion providers.CompletionClient, vision providers.VisionClient) *Service {
	t.Helper()
	return NewService(DefaultServiceConfig(), completion, vision, appconfig.NewManager(nil), nil, nil)
}

func appRequest(query string) AppReasoningRequest {
	return AppReasoningRequest{AppName: "nextshop", UserQuery: query}
}

// =============================================================================
// AppReasoning — Recovery Pipeline
// =============================================================================

func TestAppReasoning_CleanModelOutput(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.95,
		"categories": ["electronics"], "product_items": ["headphones"]}`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("show me headphones"))
	require.NoError(t, err)

	assert.Equal(t, "product_search", resp.QueryAnalysis["intent"])
	assert.Equal(t, 0.95, resp.QueryAnalysis["confidence"])
	require.Len(t, resp.ExecutionPlan, 1)
	assert.Equal(t, "products.list", resp.ExecutionPlan[0].ToolName)
	assert.Empty(t, resp.FallbackResponse)
	assert.Equal(t, "fake-3b-instruct", resp.ModelUsed)
	assert.Equal(t, "nextshop", resp.AppConfigUsed)
}

func TestAppReasoning_ProseWrappedOutput(t *testing.T) {
	oracle := &fakeCompletion{output: `Sure! Here is the analysis you asked for:
{"intent": "product_search", "confidence": 0.9, "categories": ["jewelery"]}
Let me know if you need anything else.`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("gold rings"))
	require.NoError(t, err)

	assert.Equal(t, []any{"jewelery"}, resp.QueryAnalysis["categories"])
	require.Len(t, resp.ExecutionPlan, 1)
}

func TestAppReasoning_TruncatedOutputIsRepaired(t *testing.T) {
	// Output cut mid-generation at a dangling key, as small models do.
	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.88, "categories": ["electronics"], "pro`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("cheap laptops"))
	require.NoError(t, err)

	assert.Equal(t, "product_search", resp.QueryAnalysis["intent"])
	assert.Equal(t, 0.88, resp.QueryAnalysis["confidence"])
	require.Len(t, resp.ExecutionPlan, 1, "a repaired analysis still plans")
}

func TestAppReasoning_FirstOfTwoObjectsWins(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "general_chat", "confidence": 0.99, "message": "hi"} {"intent": "product_search"}`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("hello"))
	require.NoError(t, err)

	assert.Equal(t, "general_chat", resp.QueryAnalysis["intent"])
	assert.Empty(t, resp.ExecutionPlan)
	assert.Equal(t, "hi", resp.FallbackResponse)
}

func TestAppReasoning_EmptyOutputFallsBackToSearchPlan(t *testing.T) {
	oracle := &fakeCompletion{output: "   "}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("blue suede shoes"))
	require.NoError(t, err, "the client never sees a recovery failure")

	require.Len(t, resp.ExecutionPlan, 1)
	step := resp.ExecutionPlan[0]
	assert.Equal(t, "products.search", step.ToolName)
	assert.Equal(t, "blue suede shoes", step.Parameters["query"])
	assert.LessOrEqual(t, resp.QueryAnalysis["confidence"].(float64), 0.7)
}

func TestAppReasoning_GarbageOutputFallsBack(t *testing.T) {
	oracle := &fakeCompletion{output: "I am sorry, I cannot help with that."}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("red dress"))
	require.NoError(t, err)

	require.Len(t, resp.ExecutionPlan, 1)
	assert.Equal(t, "products.search", resp.ExecutionPlan[0].ToolName)
}

func TestAppReasoning_OracleErrorFallsBack(t *testing.T) {
	oracle := &fakeCompletion{err: assert.AnError}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("winter jacket"))
	require.NoError(t, err, "runtime failure degrades to the fallback plan")
	require.Len(t, resp.ExecutionPlan, 1)
	assert.Equal(t, "products.search", resp.ExecutionPlan[0].ToolName)
}

func TestAppReasoning_OracleTimeoutIsSurfaced(t *testing.T) {
	oracle := &fakeCompletion{err: context.DeadlineExceeded}
	svc := newTestService(t, oracle, nil)

	_, err := svc.AppReasoning(context.Background(), appRequest("anything"))
	var timeoutErr *OracleTimeoutError
	require.ErrorAs(t, err, &timeoutErr, "timeouts are client-visible, never masked by the fallback plan")
	assert.Equal(t, "fake-3b-instruct", timeoutErr.Model)
}

func TestAppReasoning_MixedIntent(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.92,
		"categories": ["electronics"], "product_items": ["electronics"],
		"constraints": {"price": {"max": 100}},
		"ui_handlers": ["cart.add"]}`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("find electronics under 100 and add to cart"))
	require.NoError(t, err)

	// One search step; the UI handlers ride in its parameters.
	require.Len(t, resp.ExecutionPlan, 1)
	step := resp.ExecutionPlan[0]
	assert.Equal(t, "products.list", step.ToolName)
	assert.Equal(t, []any{"cart.add"}, step.Parameters["ui_handlers"])
	assert.Equal(t, "find electronics under 100 and add to cart", step.Parameters["original_query"])
}

func TestAppReasoning_OutOfScopeGetsFallbackMessage(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "general_chat", "confidence": 0.4}`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("what is the meaning of life"))
	require.NoError(t, err)

	assert.Empty(t, resp.ExecutionPlan)
	assert.Contains(t, resp.FallbackResponse, "shopping on NextShop",
		"low-confidence chat gets the app's configured fallback message")
}

func TestAppReasoning_HighConfidenceChatAnswersDirectly(t *testing.T) {
	oracle := &fakeCompletion{output: `{"intent": "general_chat", "confidence": 0.95, "message": "We ship worldwide."}`}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.AppReasoning(context.Background(), appRequest("do you ship to France"))
	require.NoError(t, err)

	assert.Empty(t, resp.ExecutionPlan)
	assert.Equal(t, "We ship worldwide.", resp.FallbackResponse)
}

func TestAppReasoning_RequestCategoriesOverrideConfig(t *testing.T) {
	// Model omits categories; the default fill must use the request's list,
	// not the embedded config's.
	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.9}`}
	svc := newTestService(t, oracle, nil)

	req := appRequest("anything nice")
	req.AvailableCategories = []string{"books", "games"}

	resp, err := svc.AppReasoning(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "games"}, resp.QueryAnalysis["categories"])
}

func TestAppReasoning_Validation(t *testing.T) {
	svc := newTestService(t, &fakeCompletion{output: "{}"}, nil)

	cases := []struct {
		name string
		req  AppReasoningRequest
	}{
		{"empty app name", AppReasoningRequest{UserQuery: "q"}},
		{"empty query", AppReasoningRequest{AppName: "nextshop"}},
		{"unknown app", AppReasoningRequest{AppName: "nosuchapp", UserQuery: "q"}},
		{"oversized query", AppReasoningRequest{AppName: "nextshop", UserQuery: strings.Repeat("x", 9000)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AppReasoning(context.Background(), tc.req)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestAppReasoning_NoCompletionModel(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.AppReasoning(context.Background(), appRequest("q"))
	var unavailableErr *OracleUnavailableError
	require.ErrorAs(t, err, &unavailableErr)
}

func TestAppReasoning_CompletionCacheShortCircuits(t *testing.T) {
	store, err := cache.OpenInMemory(time.Hour, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	oracle := &fakeCompletion{output: `{"intent": "product_search", "confidence": 0.9}`}
	svc := NewService(DefaultServiceConfig(), oracle, nil, appconfig.NewManager(nil), store, nil)

	req := appRequest("same query twice")
	_, err = svc.AppReasoning(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.AppReasoning(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), oracle.calls.Load(), "second identical request served from cache")
}

// =============================================================================
// Generic Reasoning
// =============================================================================

func TestGenericReasoning(t *testing.T) {
	oracle := &fakeCompletion{output: "The best gift is a watch."}
	svc := newTestService(t, oracle, nil)

	resp, err := svc.GenericReasoning(context.Background(), ReasoningRequest{
		Instruction: "suggest a gift",
	})
	require.NoError(t, err)

	assert.Equal(t, "The best gift is a watch.", resp.Result)
	assert.Equal(t, "reasoning", resp.TaskType)
	assert.Equal(t, "fake-3b-instruct", resp.ModelUsed)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMS, 0.0)
}

func TestGenericReasoning_EmptyInstruction(t *testing.T) {
	svc := newTestService(t, &fakeCompletion{}, nil)

	_, err := svc.GenericReasoning(context.Background(), ReasoningRequest{Instruction: "  "})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

// =============================================================================
// Image Reasoning
// =============================================================================

func testImagePayload() string {
	// Big enough to pass the minimum-size check; content is irrelevant to
	// the fake vision oracle.
	return base64.StdEncoding.EncodeToString([]byte(strings.Repeat("imagebytes", 20)))
}

func TestImageReasoning(t *testing.T) {
	vision := &fakeVision{output: "A pair of silver earrings on a white background."}
	svc := newTestService(t, nil, vision)

	resp, err := svc.ImageReasoning(context.Background(), ImageReasoningRequest{
		Instruction: "describe this product",
		ImageData:   testImagePayload(),
	})
	require.NoError(t, err)

	assert.Equal(t, "A pair of silver earrings on a white background.", resp.Result)
	assert.Equal(t, "image_reasoning", resp.TaskType)
	assert.Equal(t, "fake-llava", resp.ModelUsed)
}

func TestImageReasoning_Validation(t *testing.T) {
	svc := newTestService(t, nil, &fakeVision{output: "ok"})

	cases := []struct {
		name string
		req  ImageReasoningRequest
	}{
		{"empty instruction", ImageReasoningRequest{ImageData: testImagePayload()}},
		{"bad base64", ImageReasoningRequest{Instruction: "i", ImageData: "!!!notbase64!!!"}},
		{"too small", ImageReasoningRequest{Instruction: "i", ImageData: base64.StdEncoding.EncodeToString([]byte("tiny"))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ImageReasoning(context.Background(), tc.req)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestImageReasoning_NoVisionModel(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.ImageReasoning(context.Background(), ImageReasoningRequest{
		Instruction: "describe",
		ImageData:   testImagePayload(),
	})
	var unavailableErr *OracleUnavailableError
	require.ErrorAs(t, err, &unavailableErr)
}

// =============================================================================
// Health
// =============================================================================

func TestHealth(t *testing.T) {
	svc := newTestService(t, &fakeCompletion{}, &fakeVision{})

	h := svc.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, []string{"fake-3b-instruct", "fake-llava"}, h.ModelsLoaded)
	assert.GreaterOrEqual(t, h.UptimeSeconds, 0.0)
	assert.Contains(t, h.MemoryUsage, "alloc_mb")
}

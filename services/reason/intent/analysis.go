// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent turns the model's parsed shopping-query analysis into a
// canonical record and maps it to an execution plan for the tool layer.
package intent

// =============================================================================
// Intent Kinds
// =============================================================================

// Kind is the classified intent of a shopping query.
//
// # Description
//
// The model emits intent as a free string; Kind is the tagged variant the
// planner dispatches on. The raw string is preserved on QueryAnalysis.Intent
// for diagnostics, so an unexpected model label is never silently lost.
type Kind int

const (
	// KindUnknown is any intent label the planner does not recognize.
	// Planned as general chat with a logged warning.
	KindUnknown Kind = iota

	// KindProductSearch is a catalog search query.
	KindProductSearch

	// KindUIAction is a UI-level action (cart, auth) with no search.
	KindUIAction

	// KindGeneralChat is conversational/help traffic answered directly.
	KindGeneralChat
)

// Intent label strings as the model emits them.
const (
	intentProductSearch = "product_search"
	intentUIAction      = "ui_handling_action"
	intentGeneralChat   = "general_chat"
)

// KindFromLabel maps a model-supplied intent string to its Kind.
// Unrecognized labels (including "error") map to KindUnknown.
func KindFromLabel(label string) Kind {
	switch label {
	case intentProductSearch:
		return KindProductSearch
	case intentUIAction:
		return KindUIAction
	case intentGeneralChat:
		return KindGeneralChat
	default:
		return KindUnknown
	}
}

// String returns the canonical label for the kind.
func (k Kind) String() string {
	switch k {
	case KindProductSearch:
		return intentProductSearch
	case KindUIAction:
		return intentUIAction
	case KindGeneralChat:
		return intentGeneralChat
	default:
		return "unknown"
	}
}

// =============================================================================
// QueryAnalysis
// =============================================================================

// PriceRange bounds a price constraint. Either side may be absent.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Constraints holds the structured filters the model detected in the query.
type Constraints struct {
	Price  *PriceRange `json:"price,omitempty"`
	Rating *float64    `json:"rating,omitempty"`
}

// QueryAnalysis is the canonical analysis of one shopping query.
//
// # Description
//
// Produced by Normalize from the (possibly repaired) model JSON. After
// normalization every collection field is non-nil and Intent is never
// empty. Mixed intents are expected: a compound query like "find X and add
// to cart" is a product search with UIHandlers populated.
//
// The record is per-request and immutable once returned.
type QueryAnalysis struct {
	// Kind is the classified intent the planner dispatches on.
	Kind Kind `json:"-"`

	// Intent is the model's intent label, preserved verbatim.
	Intent string `json:"intent"`

	// Confidence is the model's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Categories are catalog categories to search, in model order. May be
	// the full available-category set when the query was too vague to narrow.
	Categories []string `json:"categories"`

	// ProductItems are free-text item keywords, disjoint from Categories.
	ProductItems []string `json:"product_items"`

	// Constraints are the structured filters (price, rating).
	Constraints Constraints `json:"constraints"`

	// UIHandlers are action identifiers such as "cart.add" or "auth.login".
	UIHandlers []string `json:"ui_handlers"`

	// Variants are free-text variant descriptors (color, size).
	Variants []string `json:"variants"`

	// Message is the direct conversational reply, set for general chat.
	Message string `json:"message,omitempty"`

	// Action is the model-selected UI action for ui_handling_action intents.
	Action string `json:"action,omitempty"`

	// Raw is the normalized model output as a plain map. Search steps pass
	// this verbatim to the catalog tool so downstream sees every field the
	// model produced, including ones this struct does not model.
	Raw map[string]any `json:"-"`
}

// InScope reports whether the query should proceed to planning.
//
// # Description
//
// Trust-the-model policy: the query is in scope unless the model itself
// classified it as general chat with low confidence. There is no keyword
// filter here — relevance is the model's call, not the orchestrator's.
func (q QueryAnalysis) InScope() bool {
	return q.Kind != KindGeneralChat || q.Confidence > 0.7
}

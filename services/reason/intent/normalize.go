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

import "strconv"

// Default values filled in for fields the model omitted.
const (
	// defaultIntent assumes an unlabeled query is a catalog search.
	defaultIntent = intentProductSearch

	// defaultConfidence is assigned when the model omitted its confidence.
	defaultConfidence = 0.9
)

// Normalize fills a parsed model analysis into a canonical QueryAnalysis.
//
// # Description
//
// Applies the default-fill policy to missing keys only — a field the model
// did supply is never overridden:
//
//   - intent missing        → "product_search"
//   - confidence missing    → 0.9
//   - categories missing    → the full availableCategories list (an
//     unknown query degrades to "search everything")
//   - product_items, ui_handlers, variants missing → empty
//   - constraints missing   → empty
//
// The returned Raw map carries the normalized fields plus everything else
// the model emitted, so a search step can hand the whole analysis to the
// catalog tool without re-deriving parameters.
//
// # Inputs
//
//   - parsed: Decoded model JSON. May be empty or partial; must not be nil
//     semantics-wise (nil is treated as empty).
//   - availableCategories: The app's full category list, used as the
//     categories fallback.
//
// # Outputs
//
//   - QueryAnalysis: Canonical record. Every collection field is non-nil.
//
// # Thread Safety
//
// Pure. Safe for concurrent use.
func Normalize(parsed map[string]any, availableCategories []string) QueryAnalysis {
	a := QueryAnalysis{
		Intent:       defaultIntent,
		Confidence:   defaultConfidence,
		Categories:   append([]string(nil), availableCategories...),
		ProductItems: []string{},
		UIHandlers:   []string{},
		Variants:     []string{},
	}

	if v, ok := parsed["intent"].(string); ok && v != "" {
		a.Intent = v
	}
	if v, ok := toFloat(parsed["confidence"]); ok {
		a.Confidence = v
	}
	if v, ok := parsed["categories"]; ok {
		a.Categories = toStringSlice(v)
	}
	if v, ok := parsed["product_items"]; ok {
		a.ProductItems = toStringSlice(v)
	}
	if v, ok := parsed["ui_handlers"]; ok {
		a.UIHandlers = toStringSlice(v)
	}
	if v, ok := parsed["variants"]; ok {
		a.Variants = toStringSlice(v)
	}
	if v, ok := parsed["message"].(string); ok {
		a.Message = v
	}
	if v, ok := parsed["action"].(string); ok {
		a.Action = v
	}
	if v, ok := parsed["constraints"].(map[string]any); ok {
		a.Constraints = parseConstraints(v)
	}

	a.Kind = KindFromLabel(a.Intent)
	a.Raw = rawWithDefaults(parsed, a)
	return a
}

// parseConstraints decodes the nested constraints object, tolerating
// missing or mistyped members.
func parseConstraints(m map[string]any) Constraints {
	var c Constraints

	if p, ok := m["price"].(map[string]any); ok {
		var pr PriceRange
		if v, ok := toFloat(p["min"]); ok {
			pr.Min = &v
		}
		if v, ok := toFloat(p["max"]); ok {
			pr.Max = &v
		}
		if pr.Min != nil || pr.Max != nil {
			c.Price = &pr
		}
	}
	if v, ok := toFloat(m["rating"]); ok {
		c.Rating = &v
	}
	return c
}

// rawWithDefaults copies the parsed map and writes the filled defaults back
// in, so the map handed to tools always carries the canonical fields.
func rawWithDefaults(parsed map[string]any, a QueryAnalysis) map[string]any {
	raw := make(map[string]any, len(parsed)+6)
	for k, v := range parsed {
		raw[k] = v
	}
	raw["intent"] = a.Intent
	raw["confidence"] = a.Confidence
	if _, ok := raw["categories"]; !ok {
		raw["categories"] = a.Categories
	}
	if _, ok := raw["product_items"]; !ok {
		raw["product_items"] = a.ProductItems
	}
	if _, ok := raw["ui_handlers"]; !ok {
		raw["ui_handlers"] = a.UIHandlers
	}
	if _, ok := raw["variants"]; !ok {
		raw["variants"] = a.Variants
	}
	if _, ok := raw["constraints"]; !ok {
		raw["constraints"] = map[string]any{}
	}
	return raw
}

// toStringSlice coerces a decoded JSON value into a string slice, dropping
// non-string members. Never returns nil.
func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// toFloat coerces a decoded JSON number. encoding/json decodes numbers as
// float64, but the model occasionally quotes them; both forms are accepted.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

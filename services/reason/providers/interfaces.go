// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers defines the contracts for the local model runtimes the
// gateway reasons with, plus adapters and the bounded inference pool. The
// runtimes are opaque oracles: the gateway only needs "prompt in, text out"
// and "image in, caption out"; truncated or malformed output is the
// recovery pipeline's problem, not the provider's.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for
//	concurrent use.
package providers

import "context"

// GenerationParams holds the provider-agnostic generation options.
type GenerationParams struct {
	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// Temperature controls randomness (0.0-2.0). Low values keep the JSON
	// analysis deterministic.
	Temperature float64
}

// CompletionClient is the completion oracle contract.
//
// Description:
//
//	A single synchronous call: prompt and params in, raw text out. The call
//	may take seconds and may return truncated or malformed output — that is
//	normal operation, not an error. Errors are reserved for transport and
//	runtime failures.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CompletionClient interface {
	// Complete sends the prompt and returns the model's raw text.
	Complete(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// Model returns the model identifier for logging and response metadata.
	Model() string
}

// VisionClient is the image captioning oracle contract.
//
// Thread Safety: Implementations must be safe for concurrent use.
type VisionClient interface {
	// Caption describes the image, guided by the instruction.
	Caption(ctx context.Context, instruction string, image []byte, params GenerationParams) (string, error)

	// Model returns the model identifier for logging and response metadata.
	Model() string
}

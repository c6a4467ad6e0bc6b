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
	"fmt"
	"time"
)

// ValidationError reports a request the gateway refuses to process.
// Maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// OracleUnavailableError reports that the model runtime needed for the
// request is not configured or not reachable. Maps to HTTP 503.
type OracleUnavailableError struct {
	Kind string // "completion" or "vision"
}

func (e *OracleUnavailableError) Error() string {
	return fmt.Sprintf("%s model is not available", e.Kind)
}

// OracleTimeoutError reports that the model call exceeded the endpoint's
// deadline. Surfaced to the client, never silently retried. Maps to
// HTTP 408.
type OracleTimeoutError struct {
	Model   string
	Timeout time.Duration
}

func (e *OracleTimeoutError) Error() string {
	return fmt.Sprintf("model %s did not respond within %s", e.Model, e.Timeout)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command shopmind starts the ShopMind inference gateway.
//
// ShopMind turns natural-language shopping queries (and product images)
// into structured execution plans for an e-commerce orchestrator, using
// small local models served by Ollama.
//
// Usage:
//
//	go run ./cmd/shopmind serve
//	go run ./cmd/shopmind serve --addr :8090 --model qwen2.5:3b-instruct
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Analyze a shopping query
//	curl -X POST http://localhost:8080/v1/app-reason \
//	  -H "Content-Type: application/json" \
//	  -d '{"app_name": "nextshop", "user_query": "find electronics under 100"}'
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "shopmind",
		Short: "AI inference gateway for e-commerce assistants",
		Long: "shopmind hosts the reasoning endpoints that turn shopping queries\n" +
			"and product images into structured execution plans, recovering\n" +
			"well-formed analyses from unreliable small-model JSON output.",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all reasoning routes with the router.
//
// Description:
//
//	Registers the /v1/* reasoning endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/reason - Free-text reasoning
//	POST /v1/app-reason - App-scoped query analysis with execution plan
//	POST /v1/reason-image - Image captioning
//	GET  /v1/health - Health check
//	GET  /v1/apps - List configured apps
//	GET  /v1/apps/:name/config - One app's configuration
//
// Example:
//
//	service := reason.NewService(reason.DefaultServiceConfig(), completion, vision, apps, store, logger)
//	handlers := reason.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	reason.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/reason", handlers.HandleReason)
	rg.POST("/app-reason", handlers.HandleAppReason)
	rg.POST("/reason-image", handlers.HandleReasonImage)

	rg.GET("/health", handlers.HandleHealth)

	apps := rg.Group("/apps")
	{
		apps.GET("", handlers.HandleListApps)
		apps.GET("/:name/config", handlers.HandleAppConfig)
	}
}

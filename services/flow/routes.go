// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/callflow/services/flow/telemetry"
)

// RegisterRoutes registers the /v1/flow endpoints on a router group.
//
// Endpoints:
//
//	POST /v1/flow/graph - Build a call graph
//	GET  /v1/flow/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	api := rg.Group("/flow")
	{
		api.POST("/graph", handlers.HandleGraph)
		api.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the complete HTTP router: tracing middleware, the
// /v1/flow API and, when the Prometheus exporter is active, /metrics.
func NewRouter(handlers *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware("callflow.http"))

	RegisterRoutes(router.Group("/v1"), handlers)

	if metrics := telemetry.MetricsHandler(); metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: "NOT_FOUND"})
	})
	return router
}

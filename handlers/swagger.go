package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the report service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>reportsummary - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "reportsummary", "version": "v0.1.0" },
  "paths": {
    "/summary/customers": {
      "get": { "summary": "Customer cohorts by creation month", "responses": { "200": { "description": "Result holds year, month, enabledCount, removedCount, totalCount per cohort" }, "500": { "description": "aggregation failed" } } }
    },
    "/summary/queries": {
      "get": { "summary": "Query dashboard counters", "responses": { "200": { "description": "open, in progress, closed, high priority, critical and total queries" }, "500": { "description": "aggregation failed" } } }
    },
    "/integration/reports/summary": {
      "get": { "summary": "Query status distribution and monthly invoice totals", "responses": { "200": { "description": "Result.query and Result.invoice" }, "500": { "description": "aggregation failed" } } }
    },
    "/integration/webhook": {
      "post": {
        "summary": "Store batches of records, one collection per top-level key",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","additionalProperties":{"type":"array","items":{"type":"object"}}}}}},
        "responses": { "200": { "description": "Result maps each stored collection to insertedCount" }, "413": { "description": "body too large" }, "429": { "description": "rate limited" }, "500": { "description": "invalid payload or insert failure" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition format" } } } }
  }
}`

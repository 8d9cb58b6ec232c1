package handlers

import "github.com/swaggo/swag"

// swaggerTemplate documents the collector routes served under /swagger.
// Keep it in step with the annotations on the handlers.
const swaggerTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/health": {
            "get": {
                "tags": ["system"],
                "summary": "Health check",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/now": {
            "get": {
                "tags": ["node"],
                "summary": "Current UTC time for clock synchronization",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.RemoteTimeSample"}}}
            }
        },
        "/measure": {
            "post": {
                "tags": ["node"],
                "summary": "Store one reading",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "measure", "required": true, "schema": {"$ref": "#/definitions/handlers.measureRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.MeasureRecord"}},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/api/v1/measures": {
            "get": {
                "tags": ["measures"],
                "summary": "List stored readings",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "from", "type": "string", "description": "RFC3339 or YYYY-MM-DD"},
                    {"in": "query", "name": "to", "type": "string", "description": "RFC3339 or YYYY-MM-DD"},
                    {"in": "query", "name": "capteur", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/api/v1/capteurs/{id}/latest": {
            "get": {
                "tags": ["measures"],
                "summary": "Latest reading of one node",
                "produces": ["application/json"],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MeasureRecord"}},
                    "404": {"description": "Not Found"},
                    "500": {"description": "Internal Server Error"}
                }
            }
        }
    },
    "definitions": {
        "handlers.measureRequest": {
            "type": "object",
            "required": ["timestamp", "capteur_id", "temperature", "humidity"],
            "properties": {
                "timestamp": {"type": "string", "example": "2024-11-14T20:15:30Z"},
                "capteur_id": {"type": "string", "example": "node-01"},
                "temperature": {"type": "number", "example": 21.5},
                "humidity": {"type": "number", "example": 45.25}
            }
        },
        "models.MeasureRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "timestamp": {"type": "string"},
                "capteur_id": {"type": "string"},
                "temperature": {"type": "number"},
                "humidity": {"type": "number"},
                "received_at": {"type": "string"}
            }
        },
        "models.RemoteTimeSample": {
            "type": "object",
            "properties": {
                "now": {"type": "string", "example": "2024-11-14T20:15:30Z"},
                "weekday": {"type": "integer", "example": 4}
            }
        }
    }
}`

// SwaggerInfo is the metadata rendered into the document.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Capteur collector API",
	Description:      "Clock source and measure sink for the capteur nodes.",
	InfoInstanceName: swag.Name,
	SwaggerTemplate:  swaggerTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

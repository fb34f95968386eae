// Package docs holds the OpenAPI description served on /swagger/*.
// Regenerate with: swag init -g cmd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthStatus"}}
                }
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HealthStatus"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handlers.HealthStatus"}}
                }
            }
        },
        "/v1/agents/deploy": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "Deploy an agent",
                "parameters": [
                    {"description": "Deployment request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.DeployRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DeployResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/v1/agents/heartbeat": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["agents"],
                "summary": "Check or charge the daily quota",
                "parameters": [
                    {"description": "Charge one quantum when increment is true", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.HeartbeatRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HeartbeatResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/v1/agents/pairing": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["text/plain"],
                "tags": ["agents"],
                "summary": "Stream the channel pairing terminal output",
                "parameters": [
                    {"type": "string", "description": "Agent id", "name": "agentId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "chunked terminal output", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/v1/billing/checkout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Create a subscription or one-time pass checkout",
                "parameters": [
                    {"description": "Checkout type", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Checkout"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/webhooks/razorpay": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["billing"],
                "summary": "Receive Razorpay billing events",
                "parameters": [
                    {"type": "string", "description": "HMAC-SHA256 of the raw body", "name": "X-Razorpay-Signature", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "common.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "handlers.CheckoutRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["subscription", "pass"]}
            }
        },
        "handlers.DeployResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "agentId": {"type": "string"},
                "port": {"type": "string"},
                "dashboardUrl": {"type": "string"}
            }
        },
        "handlers.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "services": {"type": "object", "additionalProperties": {"type": "string"}},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "handlers.HeartbeatRequest": {
            "type": "object",
            "properties": {
                "increment": {"type": "boolean"}
            }
        },
        "handlers.HeartbeatResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "reason": {"type": "string"},
                "remaining": {}
            }
        },
        "models.Channels": {
            "type": "object",
            "properties": {
                "telegram": {"type": "string"},
                "whatsapp": {"type": "string"}
            }
        },
        "models.Checkout": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "type": {"type": "string"}
            }
        },
        "models.DeployRequest": {
            "type": "object",
            "properties": {
                "agentName": {"type": "string"},
                "agentId": {"type": "string"},
                "provider": {"type": "string", "enum": ["local", "localclaw", "openai", "gemini"]},
                "apiKey": {"type": "string"},
                "channels": {"$ref": "#/definitions/models.Channels"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LocalClaw Orchestrator API",
	Description:      "Deploys and supervises per-tenant agent containers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

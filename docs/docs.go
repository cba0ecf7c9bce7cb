// Package docs holds the Swagger document served at /swagger.
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
        "/config": {
            "get": {
                "produces": ["application/json"],
                "tags": ["game"],
                "summary": "Get client configuration",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}}}
            }
        },
        "/jackpot": {
            "get": {
                "produces": ["application/json"],
                "tags": ["jackpot"],
                "summary": "Get jackpot status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jackpot/updates": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["jackpot"],
                "summary": "Stream jackpot updates (SSE)",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/players/{address}/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get player statistics",
                "parameters": [
                    {"type": "string", "description": "Player address", "name": "address", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/players/{address}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get player history",
                "parameters": [
                    {"type": "string", "description": "Player address", "name": "address", "in": "path", "required": true},
                    {"type": "integer", "description": "Page number, from 1", "name": "page", "in": "query"},
                    {"type": "string", "description": "wins (default) or all", "name": "view", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/tx/{hash}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["game"],
                "summary": "Decode a spin transaction",
                "parameters": [
                    {"type": "string", "description": "Transaction hash", "name": "hash", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "202": {"description": "Transaction not yet mined", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/wins/recent": {
            "get": {
                "produces": ["application/json"],
                "tags": ["wins"],
                "summary": "Recent wins",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}}}
            }
        },
        "/wins/stream": {
            "get": {
                "produces": ["text/event-stream"],
                "tags": ["wins"],
                "summary": "Stream winning spins (SSE)",
                "parameters": [
                    {"type": "string", "description": "Only this player's wins", "name": "player", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/overview": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Owner dashboard",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/admin/withdraw": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Withdraw contract funds",
                "parameters": [
                    {"description": "Withdraw request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/server.WithdrawRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.BaseResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "server.BaseResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "is_success": {"type": "boolean"},
                "status_code": {"type": "integer"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/types.ErrorDetail"},
                "is_success": {"type": "boolean"},
                "status_code": {"type": "integer"}
            }
        },
        "types.ErrorDetail": {
            "type": "object",
            "properties": {
                "error_code": {"type": "integer"},
                "error_message": {"type": "string"},
                "path": {"type": "string"},
                "timestamp": {"type": "string"},
                "trace_id": {"type": "string"}
            }
        },
        "server.WithdrawRequest": {
            "type": "object",
            "required": ["amount"],
            "properties": {
                "amount": {"type": "string", "example": "0.05"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "minibet API",
	Description:      "Read API, live feeds and owner operations for the minibet slot contract",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

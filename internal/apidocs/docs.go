// Package apidocs registers the gateway's OpenAPI document with swag so the swagger UI
// can serve it at /swagger/doc.json.
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "tags": ["ops"],
                "summary": "Liveness probe",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/readyz": {
            "get": {
                "tags": ["ops"],
                "summary": "Readiness probe (store and pubsub reachable)",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Not ready"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Open the realtime websocket",
                "security": [{"CookieAuth": []}],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/api/v1/realtime/online": {
            "get": {
                "tags": ["realtime"],
                "summary": "List online users",
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.OnlineUsersResponse"}},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/api/v1/realtime/ice-servers": {
            "get": {
                "tags": ["realtime"],
                "summary": "Get ICE servers for video calls",
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.ICEServersResponse"}},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/api/v1/realtime/emit": {
            "post": {
                "tags": ["realtime"],
                "summary": "Deliver an event to connected users",
                "description": "Used by the REST service to push events such as REFETCH_CHATS.",
                "security": [{"InternalKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/api.EmitRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "400": {"description": "Invalid request"},
                    "403": {"description": "Wrong internal key"}
                }
            }
        }
    },
    "definitions": {
        "api.OnlineUsersResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "onlineUsers": {"type": "array", "items": {"type": "string"}}
            }
        },
        "api.ICEServersResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "iceServers": {"type": "array", "items": {"$ref": "#/definitions/webrtc.ICEServer"}}
            }
        },
        "webrtc.ICEServer": {
            "type": "object",
            "properties": {
                "urls": {"type": "array", "items": {"type": "string"}},
                "username": {"type": "string"},
                "credential": {"type": "string"}
            }
        },
        "api.EmitRequest": {
            "type": "object",
            "properties": {
                "event": {"type": "string"},
                "users": {"type": "array", "items": {"type": "string"}},
                "data": {"type": "object"}
            }
        }
    },
    "securityDefinitions": {
        "CookieAuth": {"type": "apiKey", "in": "header", "name": "Cookie", "description": "tripunitetoken session cookie"},
        "InternalKey": {"type": "apiKey", "in": "header", "name": "X-Internal-Key"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "TripUnite Realtime Gateway API",
	Description:      "Websocket gateway for chat, presence and video call signaling",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the API's swagger document with swag so gin-swagger can serve it.
package docs

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
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/healthz": {"get": {"tags": ["ops"], "summary": "Database and redis health", "responses": {"200": {"description": "healthy"}, "503": {"description": "degraded"}}}},
        "/v1/auth/signup": {"post": {"tags": ["auth"], "summary": "Create an account and sign in",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/signupRequest"}}],
            "responses": {"201": {"description": "session", "schema": {"$ref": "#/definitions/session"}}, "409": {"description": "User already registered", "schema": {"$ref": "#/definitions/error"}}}}},
        "/v1/auth/login": {"post": {"tags": ["auth"], "summary": "Sign in with email and password",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/loginRequest"}}],
            "responses": {"200": {"description": "session", "schema": {"$ref": "#/definitions/session"}}, "401": {"description": "Invalid login credentials", "schema": {"$ref": "#/definitions/error"}}}}},
        "/v1/auth/refresh": {"post": {"tags": ["auth"], "summary": "Rotate a refresh token",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/refreshRequest"}}],
            "responses": {"200": {"description": "session", "schema": {"$ref": "#/definitions/session"}}, "401": {"description": "Invalid Refresh Token", "schema": {"$ref": "#/definitions/error"}}}}},
        "/v1/auth/logout": {"post": {"tags": ["auth"], "summary": "Revoke a refresh token",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/refreshRequest"}}],
            "responses": {"204": {"description": "signed out"}}}},
        "/v1/me": {"get": {"tags": ["auth"], "security": [{"Bearer": []}], "summary": "Current profile, role and landing route", "responses": {"200": {"description": "me"}}}},
        "/v1/checkins": {
            "post": {"tags": ["checkins"], "security": [{"Bearer": []}], "summary": "Upload a photo and record a check-in",
                "consumes": ["multipart/form-data", "application/json"],
                "parameters": [
                    {"in": "formData", "name": "photo", "type": "file"},
                    {"in": "formData", "name": "notes", "type": "string"},
                    {"in": "formData", "name": "location", "type": "string"}
                ],
                "responses": {"201": {"description": "record", "schema": {"$ref": "#/definitions/record"}}, "400": {"description": "MISSING_PHOTO", "schema": {"$ref": "#/definitions/error"}}, "502": {"description": "UPLOAD_FAILED or RECORD_WRITE_FAILED", "schema": {"$ref": "#/definitions/error"}}}},
            "get": {"tags": ["checkins"], "security": [{"Bearer": []}], "summary": "Own check-ins, newest first",
                "parameters": [{"in": "query", "name": "before", "type": "string", "description": "next_cursor of the previous page"}],
                "responses": {"200": {"description": "page"}}}
        },
        "/v1/storage/{bucket}/{key}": {"put": {"tags": ["storage"], "security": [{"Bearer": []}], "summary": "Upload an object under the caller's prefix",
            "consumes": ["image/jpeg"],
            "parameters": [{"in": "path", "name": "bucket", "type": "string", "required": true}, {"in": "path", "name": "key", "type": "string", "required": true}],
            "responses": {"201": {"description": "stored"}, "409": {"description": "resource already exists", "schema": {"$ref": "#/definitions/error"}}}}},
        "/v1/records": {"post": {"tags": ["checkins"], "security": [{"Bearer": []}], "summary": "Insert a record for an uploaded photo",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/recordRequest"}}],
            "responses": {"201": {"description": "record", "schema": {"$ref": "#/definitions/record"}}}}},
        "/v1/admin/stats": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Total users, today's and all check-ins", "responses": {"200": {"description": "stats"}}}},
        "/v1/admin/records": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "All check-ins with owner profiles",
            "parameters": [{"in": "query", "name": "before", "type": "string", "description": "next_cursor of the previous page"}],
            "responses": {"200": {"description": "page"}}}},
        "/v1/admin/users": {"get": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Profiles with their roles", "responses": {"200": {"description": "users"}}}},
        "/v1/admin/users/{id}/role/toggle": {"post": {"tags": ["admin"], "security": [{"Bearer": []}], "summary": "Flip a user between admin and user",
            "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
            "responses": {"200": {"description": "new role and the refreshed user list"}, "404": {"description": "unknown user", "schema": {"$ref": "#/definitions/error"}}}}}
    },
    "definitions": {
        "error": {"type": "object", "properties": {"error": {"type": "object", "properties": {"code": {"type": "string"}, "message": {"type": "string"}}}}},
        "signupRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}, "full_name": {"type": "string"}}},
        "loginRequest": {"type": "object", "required": ["email", "password"], "properties": {"email": {"type": "string"}, "password": {"type": "string"}}},
        "refreshRequest": {"type": "object", "required": ["refresh_token"], "properties": {"refresh_token": {"type": "string"}}},
        "recordRequest": {"type": "object", "required": ["key"], "properties": {"key": {"type": "string"}, "notes": {"type": "string"}, "location": {"type": "string"}}},
        "session": {"type": "object", "properties": {"access_token": {"type": "string"}, "refresh_token": {"type": "string"}, "user_id": {"type": "string"}, "role": {"type": "string"}}},
        "record": {"type": "object", "properties": {"id": {"type": "string"}, "user_id": {"type": "string"}, "check_in_time": {"type": "string", "format": "date-time"}, "photo_url": {"type": "string"}, "location": {"type": "string"}, "notes": {"type": "string"}, "status": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "photoattend API",
	Description:      "Photo-verified attendance: check-ins, history and administration.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

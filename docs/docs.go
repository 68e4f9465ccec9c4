// Package docs holds the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.RegisterRequest"}}],
                "responses": {
                    "201": {"description": "User registered", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoginRequest"}}],
                "responses": {
                    "200": {"description": "Logged in", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["auth"],
                "summary": "Refresh the access token",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.RefreshTokenRequest"}}],
                "responses": {
                    "200": {"description": "Token refreshed", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "401": {"description": "Invalid, expired or revoked refresh token", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {"200": {"description": "Logged out"}}
            }
        },
        "/csrf": {
            "get": {
                "tags": ["csrf"],
                "summary": "Get a CSRF token",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.CSRFResponse"}}}
            }
        },
        "/borrow": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["circulation"],
                "summary": "Borrow a book",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoanRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.LoanResponse"}},
                    "400": {"description": "Book unavailable or borrow limit reached", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Book not found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/return": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["circulation"],
                "summary": "Return a book",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.LoanRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.LoanResponse"}},
                    "400": {"description": "Book already available", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "403": {"description": "Caller did not borrow this book", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "404": {"description": "Book not found", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/books": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "List books",
                "parameters": [
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "condition", "in": "query"},
                    {"type": "string", "name": "language", "in": "query"},
                    {"type": "boolean", "name": "available", "in": "query"},
                    {"type": "string", "name": "search", "in": "query"},
                    {"type": "string", "name": "ordering", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "Add a book",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.CreateBookRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/dto.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/books/borrowed": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["circulation"],
                "summary": "List borrowed books",
                "responses": {"200": {"description": "Own loans for users, grouped loans for staff"}}
            }
        },
        "/books/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "Get a book",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            },
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "Update a book",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.UpdateBookRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["books"],
                "summary": "Delete a book",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "List users",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            }
        },
        "/users/{id}/role": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Change a user's role",
                "parameters": [
                    {"type": "integer", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/dto.UpdateRoleRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/dto.APIResponse"}}}
            }
        }
    },
    "definitions": {
        "dto.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"},
                "timestamp": {"type": "string"}
            }
        },
        "dto.ErrorDetail": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "LOAN_001"},
                "message": {"type": "string"},
                "field": {"type": "string"},
                "severity": {"type": "string"},
                "details": {}
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error": {"$ref": "#/definitions/dto.ErrorDetail"},
                "timestamp": {"type": "string"}
            }
        },
        "dto.CSRFResponse": {
            "type": "object",
            "properties": {"csrfToken": {"type": "string"}}
        },
        "dto.LoanRequest": {
            "type": "object",
            "required": ["book_id"],
            "properties": {"book_id": {"type": "integer"}}
        },
        "dto.LoanResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "book": {"$ref": "#/definitions/dto.BookResponse"}
            }
        },
        "dto.BookResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "title": {"type": "string"},
                "author": {"type": "string"},
                "isbn": {"type": "string"},
                "category": {"type": "string"},
                "category_display": {"type": "string"},
                "language": {"type": "string"},
                "condition": {"type": "string"},
                "condition_display": {"type": "string"},
                "available": {"type": "boolean"},
                "image": {"type": "string"},
                "borrower": {"type": "string"},
                "borrower_id": {"type": "integer"},
                "borrow_date": {"type": "string"},
                "due_date": {"type": "string"},
                "storage_location": {"type": "string"},
                "publisher": {"type": "string"},
                "publication_year": {"type": "integer"},
                "copy_number": {"type": "integer"},
                "added_by": {"type": "string"},
                "added_by_id": {"type": "integer"},
                "days_left": {"type": "integer"},
                "overdue": {"type": "boolean"},
                "days_overdue": {"type": "integer"},
                "due_today": {"type": "boolean"}
            }
        },
        "dto.CreateBookRequest": {
            "type": "object",
            "required": ["title", "author", "isbn", "category", "language", "condition"],
            "properties": {
                "title": {"type": "string"},
                "author": {"type": "string"},
                "isbn": {"type": "string", "maxLength": 17},
                "category": {"type": "string", "enum": ["CK", "CR", "MY", "SF", "FAN", "HIS", "ROM", "TXT"]},
                "language": {"type": "string"},
                "condition": {"type": "string", "enum": ["NW", "GD", "FR", "PO"]},
                "storage_location": {"type": "string"},
                "publisher": {"type": "string"},
                "publication_year": {"type": "integer"},
                "copy_number": {"type": "integer"}
            }
        },
        "dto.UpdateBookRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "author": {"type": "string"},
                "isbn": {"type": "string"},
                "category": {"type": "string"},
                "language": {"type": "string"},
                "condition": {"type": "string"},
                "storage_location": {"type": "string"},
                "publisher": {"type": "string"},
                "publication_year": {"type": "integer"},
                "copy_number": {"type": "integer"}
            }
        },
        "dto.LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}
        },
        "dto.RegisterRequest": {
            "type": "object",
            "required": ["username", "email", "password", "password2"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "password2": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "age": {"type": "integer"}
            }
        },
        "dto.RefreshTokenRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "dto.UpdateRoleRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {"role": {"type": "string", "enum": ["AD", "US", "LB"]}}
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
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Libris API",
	Description:      "Library catalog and circulation service.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

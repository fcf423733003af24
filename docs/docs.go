// Package docs registers the OpenAPI document served under /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/v1/auth/signup": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a landlord organization on a free trial",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}, "409": {"description": "EMAIL_TAKEN"}}
            }
        },
        "/v1/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Exchange email and password for an access token",
                "responses": {"200": {"description": "OK"}, "401": {"description": "INVALID_CREDENTIALS"}}
            }
        },
        "/v1/plans": {
            "get": {
                "tags": ["subscription"],
                "summary": "List subscription plans with prices and limits",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/subscription/status": {
            "get": {
                "tags": ["subscription"],
                "summary": "Current subscription with derived renewal and overdue days",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/subscription/payment-instructions": {
            "get": {
                "tags": ["subscription"],
                "summary": "Static account details for a payment method",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "method", "in": "query", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/subscription/upgrade": {
            "post": {
                "tags": ["subscription"],
                "summary": "Submit a plan upgrade or renewal with a payment receipt",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "planId", "in": "formData", "required": true, "type": "string"},
                    {"name": "billingCycle", "in": "formData", "required": true, "type": "string"},
                    {"name": "paymentMethod", "in": "formData", "required": true, "type": "string"},
                    {"name": "receipt", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {"201": {"description": "Created"}, "409": {"description": "VERIFICATION_PENDING"}}
            }
        },
        "/v1/subscription/cancel": {
            "post": {
                "tags": ["subscription"],
                "summary": "Cancel an active subscription",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/usage": {
            "get": {
                "tags": ["subscription"],
                "summary": "Current usage against plan limits",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/properties": {
            "post": {
                "tags": ["resources"],
                "summary": "Create a plan-gated resource",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}, "402": {"description": "SUBSCRIPTION_OVERDUE"}, "403": {"description": "PLAN_LIMIT_EXCEEDED"}}
            }
        },
        "/v1/admin/billing/subscriptions": {
            "get": {
                "tags": ["admin"],
                "summary": "List subscription requests, newest first",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/admin/billing/verify-subscription/{id}": {
            "post": {
                "tags": ["admin"],
                "summary": "Approve or reject a pending subscription request",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "409": {"description": "REQUEST_ALREADY_REVIEWED"}}
            }
        },
        "/v1/admin/billing/overview": {
            "get": {
                "tags": ["admin"],
                "summary": "Platform revenue and subscription health",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/admin/users/organizations": {
            "post": {
                "tags": ["admin"],
                "summary": "Create an organization with its landlord owner on a trial",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/v1/admin/users/organizations/{id}/toggle-status": {
            "post": {
                "tags": ["admin"],
                "summary": "Suspend or reactivate an organization",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/admin/users/{id}/impersonate": {
            "post": {
                "tags": ["admin"],
                "summary": "Issue a short-lived token acting as a landlord",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/admin/audit-logs": {
            "get": {
                "tags": ["admin"],
                "summary": "List audit entries with filtering and pagination",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Dependency health",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Database unreachable"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Rentdesk API",
	Description:      "Subscription, plan-limit and billing core of the rentdesk property management platform.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Announcement API",
        "description": "Announcement feeds, administration and scheduled email delivery.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Announcements", "description": "Feeds visible to end users"},
        {"name": "Announcements Admin", "description": "Announcement administration and delivery"}
    ],
    "paths": {
        "/announcements/public": {
            "get": {
                "tags": ["Announcements"],
                "summary": "Public announcements",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AnnouncementListEnvelope"}}
                }
            }
        },
        "/announcements/feed": {
            "get": {
                "tags": ["Announcements"],
                "summary": "Announcements visible to the current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AnnouncementListEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/announcements/banners": {
            "get": {
                "tags": ["Announcements"],
                "summary": "Visible banner announcements",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AnnouncementListEnvelope"}}
                }
            }
        },
        "/announcements/tags": {
            "get": {
                "tags": ["Announcements"],
                "summary": "Visible announcements carrying any of the given tags",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "tags", "in": "query", "type": "string", "required": true, "description": "Comma separated tags"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AnnouncementListEnvelope"}},
                    "400": {"description": "No tags given", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/announcements": {
            "get": {
                "tags": ["Announcements Admin"],
                "summary": "List announcements",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "is_active", "in": "query", "type": "boolean"},
                    {"name": "priority", "in": "query", "type": "string", "enum": ["P1", "P2", "P3"]},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "display_type", "in": "query", "type": "string"},
                    {"name": "created_by", "in": "query", "type": "string"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "starts_after", "in": "query", "type": "string"},
                    {"name": "starts_before", "in": "query", "type": "string"},
                    {"name": "expires_after", "in": "query", "type": "string"},
                    {"name": "expires_before", "in": "query", "type": "string"},
                    {"name": "tags", "in": "query", "type": "string"},
                    {"name": "show_as_banner", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/AnnouncementListEnvelope"}}
                }
            },
            "post": {
                "tags": ["Announcements Admin"],
                "summary": "Create announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnnouncementPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unknown course or user", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/announcements/stats": {
            "get": {
                "tags": ["Announcements Admin"],
                "summary": "Announcement counts",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/announcements/export": {
            "get": {
                "tags": ["Announcements Admin"],
                "summary": "Export announcements as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/admin/announcements/delivery/trigger": {
            "post": {
                "tags": ["Announcements Admin"],
                "summary": "Send today's scheduled announcement emails now",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Run report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/announcements/{id}": {
            "get": {
                "tags": ["Announcements Admin"],
                "summary": "Get announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Announcements Admin"],
                "summary": "Update announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AnnouncementPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Announcements Admin"],
                "summary": "Delete announcement",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/announcements/{id}/toggle": {
            "patch": {
                "tags": ["Announcements Admin"],
                "summary": "Flip the active flag",
                "security": [{"BearerAuth": []}],
                "parameters": [{"name": "id", "in": "path", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Announcement": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "content": {"type": "string"},
                "type": {"type": "string"},
                "priority": {"type": "string"},
                "category": {"type": "string"},
                "display_type": {"type": "string"},
                "course_id": {"type": "string"},
                "target_roles": {"type": "array", "items": {"type": "string"}},
                "target_user_ids": {"type": "array", "items": {"type": "string"}},
                "starts_at": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"},
                "clear_starts_at": {"type": "boolean", "description": "update only: reset starts_at to null"},
                "clear_expires_at": {"type": "boolean", "description": "update only: reset expires_at to null"},
                "is_active": {"type": "boolean"},
                "show_as_banner": {"type": "boolean"},
                "send_email": {"type": "boolean"},
                "action_url": {"type": "string"},
                "action_text": {"type": "string"},
                "image_url": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "created_by": {"type": "string"},
                "creator_name": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "AnnouncementPayload": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"},
                "type": {"type": "string"},
                "priority": {"type": "string"},
                "category": {"type": "string"},
                "display_type": {"type": "string"},
                "course_id": {"type": "string"},
                "target_roles": {"type": "array", "items": {"type": "string"}},
                "target_user_ids": {"type": "array", "items": {"type": "string"}},
                "starts_at": {"type": "string", "format": "date-time"},
                "expires_at": {"type": "string", "format": "date-time"},
                "is_active": {"type": "boolean"},
                "show_as_banner": {"type": "boolean"},
                "send_email": {"type": "boolean"},
                "action_url": {"type": "string"},
                "action_text": {"type": "string"},
                "image_url": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        },
        "AnnouncementListEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/Announcement"}},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Staffing Coverage API",
        "description": "Coverage and substitute-assignment engine for childcare staff scheduling",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Conflicts", "description": "Batch candidate availability evaluation"},
        {"name": "Coverage", "description": "Absence coverage requests and shift maps"},
        {"name": "Recommendations", "description": "Substitute candidate ranking"},
        {"name": "Assignments", "description": "Substitute assignment lifecycle"},
        {"name": "Baseline", "description": "Recurring weekly staffing grid"}
    ],
    "paths": {
        "/conflicts/compute": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Evaluate candidate availability for a batch of shifts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ComputeConflictsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/coverage": {
            "get": {
                "tags": ["Coverage"],
                "summary": "Fetch or materialize the coverage request for an absence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/recommendations": {
            "get": {
                "tags": ["Recommendations"],
                "summary": "Rank substitute candidates and covering combinations",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "includeFlexibleStaff", "in": "query", "type": "boolean"},
                    {"name": "includePastShifts", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/assignments": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Assign a candidate to absence shifts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignShiftsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Shift already covered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/absences/{id}/assignments/unassign": {
            "post": {
                "tags": ["Assignments"],
                "summary": "Cancel assignments by scope",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UnassignShiftsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/baseline/resolve-conflict": {
            "post": {
                "tags": ["Baseline"],
                "summary": "Place a teacher on the weekly grid, resolving double-bookings",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResolveBaselineConflictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ComputeConflictsRequest": {
            "type": "object",
            "required": ["checks"],
            "properties": {
                "checks": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "candidateId": {"type": "string"},
                            "date": {"type": "string", "format": "date"},
                            "timeSlotId": {"type": "string"},
                            "classroomId": {"type": "string"}
                        }
                    }
                }
            }
        },
        "AssignShiftsRequest": {
            "type": "object",
            "required": ["candidateId", "shiftIds"],
            "properties": {
                "candidateId": {"type": "string"},
                "shiftIds": {"type": "array", "items": {"type": "string"}},
                "kind": {"type": "string", "enum": ["recommended", "flex"]},
                "notes": {"type": "string"}
            }
        },
        "UnassignShiftsRequest": {
            "type": "object",
            "required": ["candidateId", "scope"],
            "properties": {
                "candidateId": {"type": "string"},
                "scope": {"type": "string", "enum": ["single", "weekday", "all_for_absence"]},
                "target": {
                    "type": "object",
                    "properties": {
                        "assignmentId": {"type": "string"},
                        "dayOfWeek": {"type": "integer"},
                        "timeSlotId": {"type": "string"},
                        "classroomId": {"type": "string"}
                    }
                }
            }
        },
        "ResolveBaselineConflictRequest": {
            "type": "object",
            "required": ["teacherId", "dayOfWeek", "timeSlotId", "targetClassroomId", "resolution"],
            "properties": {
                "teacherId": {"type": "string"},
                "dayOfWeek": {"type": "integer"},
                "timeSlotId": {"type": "string"},
                "targetClassroomId": {"type": "string"},
                "classGroupId": {"type": "string"},
                "resolution": {"type": "string", "enum": ["remove_other", "mark_floater", "cancel"]}
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
                "status": {"type": "integer"}
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

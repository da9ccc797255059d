package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Report Engine API",
        "description": "Grading engine producing report cards, class rankings and exported report documents.",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "ReportCards", "description": "Per-student report cards and class rankings"},
        {"name": "Marks", "description": "Assessment mark entry"},
        {"name": "Batches", "description": "Asynchronous class report-card documents"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "tags": ["Observability"],
                "summary": "Readiness check against Postgres and Redis",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/metrics/summary": {
            "get": {
                "tags": ["Observability"],
                "summary": "In-process counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/report-cards/students/{studentId}": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Student report card",
                "description": "Reduces every subject of the student for the term and aggregates the overall average and GPA.",
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReportCardEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Institution misconfigured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/report-cards/students/{studentId}/export": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Download a student report card",
                "produces": ["application/pdf", "text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"name": "studentId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "csv", "xlsx"], "default": "pdf"}
                ],
                "responses": {
                    "200": {"description": "Rendered document", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/report-cards/classes/{classId}/ranking": {
            "get": {
                "tags": ["ReportCards"],
                "summary": "Class ranking",
                "description": "Ranks every enrolled student of the class by overall average, then GPA. Tied students share a rank.",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "termId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/report-cards/classes/{classId}/batches": {
            "get": {
                "tags": ["Batches"],
                "summary": "List batches of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer", "default": 1},
                    {"name": "limit", "in": "query", "type": "integer", "default": 20}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Batches"],
                "summary": "Queue a class report-card batch",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Actor-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateBatchRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/report-cards/batches/{id}": {
            "get": {
                "tags": ["Batches"],
                "summary": "Batch status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/export/{token}": {
            "get": {
                "tags": ["Batches"],
                "summary": "Download a rendered batch",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rendered document", "schema": {"type": "file"}},
                    "404": {"description": "Unknown link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch not finished", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/marks": {
            "post": {
                "tags": ["Marks"],
                "summary": "Record a mark",
                "description": "Stores one score for a student on an assessment. CA and EXAM may be recorded once per subject.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordMarkRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Kind not valid for the institution", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateBatchRequest": {
            "type": "object",
            "required": ["termId"],
            "properties": {
                "termId": {"type": "string"},
                "format": {"type": "string", "enum": ["pdf", "csv", "xlsx"]},
                "title": {"type": "string"}
            }
        },
        "RecordMarkRequest": {
            "type": "object",
            "required": ["assessmentId", "studentId"],
            "properties": {
                "assessmentId": {"type": "string"},
                "studentId": {"type": "string"},
                "scoreObtained": {"type": "number", "minimum": 0, "maximum": 100},
                "isAbsent": {"type": "boolean"}
            }
        },
        "SubjectResult": {
            "type": "object",
            "properties": {
                "subject_id": {"type": "string"},
                "subject_name": {"type": "string"},
                "subject_code": {"type": "string"},
                "credits": {"type": "number"},
                "final_mark": {"type": "number"},
                "letter_grade": {"type": "string"},
                "grade_points": {"type": "number"},
                "anomalies": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ReportCard": {
            "type": "object",
            "properties": {
                "student": {"type": "object"},
                "term": {"type": "object"},
                "mode": {"type": "string", "enum": ["SECONDARY", "UNIVERSITY"]},
                "subjects": {"type": "array", "items": {"$ref": "#/definitions/SubjectResult"}},
                "overall_average": {"type": "number"},
                "overall_grade": {"type": "string"},
                "gpa": {"type": "number"},
                "total_credits": {"type": "number"},
                "incomplete": {"type": "boolean"},
                "generated_at": {"type": "string", "format": "date-time"}
            }
        },
        "ReportCardEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ReportCard"},
                "meta": {"type": "object"}
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

// Package docs registers the OpenAPI document served under /swagger.
// Keep it in step with the @Router annotations in internal/handlers.
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
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/health": {
            "get": {"tags": ["Health"], "summary": "Health check", "security": [], "responses": {"200": {"description": "OK"}}}
        },
        "/split": {
            "post": {
                "tags": ["Split"], "summary": "Compute a payment split",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/SplitRequest"}}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Validation", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/obligations": {
            "get": {
                "tags": ["Obligations"], "summary": "List obligations",
                "parameters": [
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "per_page", "type": "integer"},
                    {"in": "query", "name": "search_term", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Obligations"], "summary": "Register an obligation with its installments",
                "parameters": [{"in": "body", "name": "obrigacao", "required": true, "schema": {"type": "object"}}],
                "responses": {"201": {"description": "Created"}, "422": {"description": "Validation", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/obligations/{obligation_id}": {
            "get": {"tags": ["Obligations"], "summary": "Show an obligation", "parameters": [{"$ref": "#/parameters/obligationID"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/obligations/{obligation_id}/sync": {
            "post": {"tags": ["Sync"], "summary": "Synchronize every installment of an obligation", "parameters": [{"$ref": "#/parameters/obligationID"}, {"$ref": "#/parameters/force"}], "responses": {"200": {"description": "Per-installment results"}}}
        },
        "/installments/pending_repasse": {
            "get": {"tags": ["Repasse"], "summary": "Installments awaiting client payout", "responses": {"200": {"description": "OK"}}}
        },
        "/installments/{installment_id}": {
            "get": {"tags": ["Installments"], "summary": "Show an installment", "parameters": [{"$ref": "#/parameters/installmentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/installments/{installment_id}/split": {
            "get": {"tags": ["Installments"], "summary": "Split of an installment", "parameters": [{"$ref": "#/parameters/installmentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/installments/{installment_id}/payment": {
            "post": {
                "tags": ["Installments"], "summary": "Register an installment payment",
                "parameters": [{"$ref": "#/parameters/installmentID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"payment_date": {"type": "string", "format": "date"}}}}],
                "responses": {"200": {"description": "OK"}, "422": {"description": "Validation", "schema": {"$ref": "#/definitions/ErrorResponse"}}}
            }
        },
        "/installments/{installment_id}/cancel": {
            "post": {"tags": ["Installments"], "summary": "Cancel an installment", "parameters": [{"$ref": "#/parameters/installmentID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/installments/{installment_id}/sync": {
            "post": {"tags": ["Sync"], "summary": "Synchronize an installment with its ledger entry", "parameters": [{"$ref": "#/parameters/installmentID"}, {"$ref": "#/parameters/force"}], "responses": {"200": {"description": "OK"}}}
        },
        "/installments/{installment_id}/repasse/declaration": {
            "post": {"tags": ["Repasse"], "summary": "Register the declaration of accounts", "parameters": [{"$ref": "#/parameters/installmentID"}, {"$ref": "#/parameters/documentBody"}], "responses": {"200": {"description": "OK"}, "422": {"description": "Out of order", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/installments/{installment_id}/repasse/transfer": {
            "post": {"tags": ["Repasse"], "summary": "Register the transfer proof", "parameters": [{"$ref": "#/parameters/installmentID"}, {"$ref": "#/parameters/documentBody"}], "responses": {"200": {"description": "OK"}, "422": {"description": "Out of order", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/ledger_entries": {
            "get": {"tags": ["Ledger"], "summary": "List ledger entries", "parameters": [{"in": "query", "name": "due_from", "type": "string", "format": "date"}, {"in": "query", "name": "due_to", "type": "string", "format": "date"}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Ledger"], "summary": "Create a ledger entry", "parameters": [{"in": "body", "name": "lancamento", "required": true, "schema": {"type": "object"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/ledger_entries/{entry_id}": {
            "get": {"tags": ["Ledger"], "summary": "Show a ledger entry", "parameters": [{"$ref": "#/parameters/entryID"}], "responses": {"200": {"description": "OK"}}},
            "patch": {"tags": ["Ledger"], "summary": "Update user-owned fields", "parameters": [{"$ref": "#/parameters/entryID"}, {"in": "body", "name": "lancamento", "required": true, "schema": {"type": "object"}}], "responses": {"200": {"description": "OK"}}}
        },
        "/ledger_entries/{entry_id}/confirm": {
            "post": {"tags": ["Ledger"], "summary": "Confirm an entry", "parameters": [{"$ref": "#/parameters/entryID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/ledger_entries/{entry_id}/cancel": {
            "post": {"tags": ["Ledger"], "summary": "Cancel a pending entry", "parameters": [{"$ref": "#/parameters/entryID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/ledger_entries/{entry_id}/reverse": {
            "post": {"tags": ["Ledger"], "summary": "Reverse a confirmed entry", "parameters": [{"$ref": "#/parameters/entryID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/ledger_entries/{entry_id}/attachments": {
            "post": {"tags": ["Ledger"], "summary": "Attach a document", "parameters": [{"$ref": "#/parameters/entryID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"name": {"type": "string"}, "url": {"type": "string"}, "mime": {"type": "string"}, "size": {"type": "integer"}}}}], "responses": {"200": {"description": "OK"}}}
        },
        "/consistency": {
            "get": {"tags": ["Consistency"], "summary": "Check installment and ledger consistency", "parameters": [{"in": "query", "name": "obligation_id", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/consistency/repair": {
            "post": {"tags": ["Consistency"], "summary": "Repair repairable inconsistencies", "parameters": [{"in": "query", "name": "obligation_id", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/transactions/import": {
            "post": {"tags": ["Reconciliation"], "summary": "Import normalized statement lines", "parameters": [{"in": "body", "name": "extrato", "required": true, "schema": {"type": "object"}}], "responses": {"201": {"description": "Created"}}}
        },
        "/transactions/pending": {
            "get": {"tags": ["Reconciliation"], "summary": "Transactions awaiting reconciliation", "parameters": [{"in": "query", "name": "bank_account_id", "type": "integer"}], "responses": {"200": {"description": "OK"}}}
        },
        "/transactions/auto_reconcile": {
            "post": {"tags": ["Reconciliation"], "summary": "Link high-confidence matches", "parameters": [{"in": "query", "name": "bank_account_id", "type": "integer"}], "responses": {"200": {"description": "Per-transaction outcomes"}}}
        },
        "/transactions/{transaction_id}": {
            "get": {"tags": ["Reconciliation"], "summary": "Show a transaction", "parameters": [{"$ref": "#/parameters/transactionID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/transactions/{transaction_id}/suggestions": {
            "get": {"tags": ["Reconciliation"], "summary": "Ranked ledger entry suggestions", "parameters": [{"$ref": "#/parameters/transactionID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/transactions/{transaction_id}/reconcile": {
            "post": {"tags": ["Reconciliation"], "summary": "Link a transaction to a ledger entry", "parameters": [{"$ref": "#/parameters/transactionID"}, {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"ledger_entry_id": {"type": "integer"}, "notes": {"type": "string"}}}}], "responses": {"200": {"description": "OK"}, "409": {"description": "Entry already reconciled", "schema": {"$ref": "#/definitions/ErrorResponse"}}}}
        },
        "/transactions/{transaction_id}/unreconcile": {
            "post": {"tags": ["Reconciliation"], "summary": "Undo a reconciliation", "parameters": [{"$ref": "#/parameters/transactionID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/transactions/{transaction_id}/ignore": {
            "post": {"tags": ["Reconciliation"], "summary": "Ignore a transaction", "parameters": [{"$ref": "#/parameters/transactionID"}], "responses": {"200": {"description": "OK"}}}
        },
        "/documents": {
            "post": {
                "tags": ["Documents"], "summary": "Upload a repasse document", "consumes": ["multipart/form-data"],
                "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}, {"in": "formData", "name": "kind", "type": "string"}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/alerts": {
            "get": {"tags": ["Alerts"], "summary": "List alerts", "parameters": [{"in": "query", "name": "unread", "type": "boolean"}], "responses": {"200": {"description": "OK"}}}
        },
        "/alerts/unread_count": {
            "get": {"tags": ["Alerts"], "summary": "Count unread alerts", "responses": {"200": {"description": "OK"}}}
        },
        "/alerts/{alert_id}/read": {
            "post": {"tags": ["Alerts"], "summary": "Mark an alert as read", "parameters": [{"in": "path", "name": "alert_id", "type": "integer", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/audits": {
            "get": {"tags": ["Audit"], "summary": "List audit logs", "responses": {"200": {"description": "OK"}}}
        },
        "/jobs/status": {
            "get": {"tags": ["Jobs"], "summary": "Get background job status", "responses": {"200": {"description": "OK"}}}
        },
        "/jobs/{name}/run": {
            "post": {"tags": ["Jobs"], "summary": "Trigger background job", "parameters": [{"in": "path", "name": "name", "type": "string", "required": true}], "responses": {"202": {"description": "Queued"}, "404": {"description": "Unknown job"}}}
        }
    },
    "parameters": {
        "obligationID": {"in": "path", "name": "obligation_id", "type": "integer", "required": true},
        "installmentID": {"in": "path", "name": "installment_id", "type": "integer", "required": true},
        "entryID": {"in": "path", "name": "entry_id", "type": "integer", "required": true},
        "transactionID": {"in": "path", "name": "transaction_id", "type": "integer", "required": true},
        "force": {"in": "query", "name": "force", "type": "boolean"},
        "documentBody": {"in": "body", "name": "body", "required": true, "schema": {"type": "object", "properties": {"document_url": {"type": "string"}, "repasse_date": {"type": "string", "format": "date"}}}}
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string", "enum": ["VALIDATION_ERROR", "CONFLICT", "NOT_FOUND", "DATABASE_ERROR"]},
                "rule": {"type": "string"}
            }
        },
        "SplitRequest": {
            "type": "object",
            "properties": {
                "principal": {"type": "string"},
                "direction": {"type": "string", "enum": ["recebimento", "pagamento"]},
                "contractual_fee_percent": {"type": "string"},
                "statutory_fee": {"type": "string"},
                "has_client": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Conciliação API",
	Description:      "Obligations, installment splits, ledger synchronization and bank reconciliation",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

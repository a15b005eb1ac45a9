package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeInvalidCount           = "invalid_count"
	codeInvalidDirection       = "invalid_direction"
	codeDuplicatePeriodicCheck = "duplicate_periodic_check"
	codeChecklistNotFound      = "checklist_not_found"
	codeChecklistItemNotFound  = "checklist_item_not_found"
	codeEjectionNotFound       = "ejection_not_found"
	codePeriodicNotFound       = "periodic_check_not_found"
	codeAlertNotFound          = "alert_not_found"
	codeInvalidAlertType       = "invalid_alert_type"
	codeInvalidID              = "invalid_id"
	codeNotReady               = "venue_not_ready"
	codeTornDown               = "session_torn_down"
	codeForbidden              = "forbidden"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

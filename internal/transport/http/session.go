package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

// SessionOps is the slice of the sync engine the door endpoints drive.
// Capacity mutations cannot fail on a disconnected store; the only errors
// that surface here are domain refusals and teardown.
type SessionOps interface {
	Increment() error
	Decrement() error
	SetAbsolute(value int) error
	SyncBulkCounts(targetIn, targetOut int) error
	RecordPeriodicCheck(timeLabel string, countIn, countOut, countTotal int) error
	ResetClickers() error
	ToggleChecklistItem(listID, itemID string) error
	RecordEjection(description, narrative string, policeCalled, injuries bool, custom map[string]string) error
	RecordRejection(reason domain.RejectionReason) error
	RecordPatrol(area string) error
	DeleteEjection(id string) error
	DeletePeriodic(id string) error
	SetBriefing(b *domain.Briefing) error
	SetMaxCapacity(max int) error

	Session() *domain.Session
	IsLive() bool
	IsLoading() bool
}

type sessionResponse struct {
	Session *domain.Session `json:"session"`
	Live    bool            `json:"live"`
	Loading bool            `json:"loading"`
}

// HandleGetSession returns the current session snapshot with the
// live/loading status pair.
func HandleGetSession(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{
			Session: ops.Session(),
			Live:    ops.IsLive(),
			Loading: ops.IsLoading(),
		})
	}
}

// HandleClicker serves the organic increment/decrement path.
func HandleClicker(ops SessionOps, dir domain.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var err error
		if dir == domain.DirectionIn {
			err = ops.Increment()
		} else {
			err = ops.Decrement()
		}
		if err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type setCapacityRequest struct {
	Value int `json:"value"`
}

func HandleSetCapacity(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req setCapacityRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := ops.SetAbsolute(req.Value); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type bulkSyncRequest struct {
	CountIn  int `json:"count_in"`
	CountOut int `json:"count_out"`
}

// HandleBulkSync reconciles two external clicker totals against the log.
func HandleBulkSync(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req bulkSyncRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.CountIn < 0 || req.CountOut < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidCount, "counts must be non-negative")
			return
		}
		if err := ops.SyncBulkCounts(req.CountIn, req.CountOut); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type periodicCheckRequest struct {
	TimeLabel  string `json:"time_label"`
	CountIn    int    `json:"count_in"`
	CountOut   int    `json:"count_out"`
	CountTotal int    `json:"count_total"`
}

// HandlePeriodicCheck records a half-hourly audited count, and deletes one
// by id on the subtree path.
func HandlePeriodicCheck(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimPrefix(r.URL.Path, "/session/periodic/"); id != r.URL.Path && id != "" {
			if r.Method != http.MethodDelete {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			if err := ops.DeletePeriodic(id); err != nil {
				writeOpError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req periodicCheckRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.TimeLabel == "" {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "time_label is required")
			return
		}
		if err := ops.RecordPeriodicCheck(req.TimeLabel, req.CountIn, req.CountOut, req.CountTotal); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

// HandleResetClickers clears the tally. The UI confirms with the operator
// before calling; periodic logs survive the reset.
func HandleResetClickers(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if err := ops.ResetClickers(); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type toggleChecklistRequest struct {
	ListID string `json:"list_id"`
	ItemID string `json:"item_id"`
}

func HandleToggleChecklist(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req toggleChecklistRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := ops.ToggleChecklistItem(req.ListID, req.ItemID); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type ejectionRequest struct {
	Description  string            `json:"description"`
	Narrative    string            `json:"narrative"`
	PoliceCalled bool              `json:"police_called"`
	Injuries     bool              `json:"injuries"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// HandleEjections records an incident on POST and deletes one by id on the
// subtree path. Deletion is a whole-array replace; the UI confirms first.
func HandleEjections(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimPrefix(r.URL.Path, "/session/ejections/"); id != r.URL.Path && id != "" {
			if r.Method != http.MethodDelete {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			if err := ops.DeleteEjection(id); err != nil {
				writeOpError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
			return
		}

		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req ejectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := ops.RecordEjection(req.Description, req.Narrative, req.PoliceCalled, req.Injuries, req.CustomFields); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type rejectionRequest struct {
	Reason domain.RejectionReason `json:"reason"`
}

func HandleRejections(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req rejectionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := ops.RecordRejection(req.Reason); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type patrolRequest struct {
	Area string `json:"area"`
}

func HandlePatrols(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req patrolRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := ops.RecordPatrol(req.Area); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type briefingRequest struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
	SetBy    string `json:"set_by"`
}

// HandleBriefing sets the shift briefing on PUT; an empty text clears it.
func HandleBriefing(ops SessionOps, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req briefingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		var briefing *domain.Briefing
		if req.Text != "" {
			priority := domain.BriefingPriority(req.Priority)
			if priority == "" {
				priority = domain.BriefingInfo
			}
			briefing = &domain.Briefing{
				Text:      req.Text,
				Priority:  priority,
				SetBy:     req.SetBy,
				Timestamp: now(),
			}
		}
		if err := ops.SetBriefing(briefing); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

type maxCapacityRequest struct {
	Value int `json:"value"`
}

func HandleMaxCapacity(ops SessionOps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		var req maxCapacityRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Value < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidCount, "max capacity must be non-negative")
			return
		}
		if err := ops.SetMaxCapacity(req.Value); err != nil {
			writeOpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Session: ops.Session(), Live: ops.IsLive(), Loading: ops.IsLoading()})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeOpError maps domain refusals onto HTTP statuses. Connectivity never
// appears here: capacity operations absorb remote failures by design.
func writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicatePeriodicCheck):
		writeError(w, http.StatusConflict, codeDuplicatePeriodicCheck, err.Error())
	case errors.Is(err, domain.ErrChecklistNotFound):
		writeError(w, http.StatusNotFound, codeChecklistNotFound, err.Error())
	case errors.Is(err, domain.ErrChecklistItemNotFound):
		writeError(w, http.StatusNotFound, codeChecklistItemNotFound, err.Error())
	case errors.Is(err, domain.ErrEjectionNotFound):
		writeError(w, http.StatusNotFound, codeEjectionNotFound, err.Error())
	case errors.Is(err, domain.ErrPeriodicNotFound):
		writeError(w, http.StatusNotFound, codePeriodicNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidCount), errors.Is(err, domain.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, codeInvalidCount, err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, codeNotReady, err.Error())
	case errors.Is(err, domain.ErrTornDown):
		writeError(w, http.StatusGone, codeTornDown, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

package http

import (
	"context"
	"net/http"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type HistoryLister interface {
	History(ctx context.Context) ([]domain.Session, error)
}

type ShiftEnder interface {
	EndShift() error
}

// HandleHistory returns recent closed shifts, newest first.
func HandleHistory(svc HistoryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		shifts, err := svc.History(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}
		if shifts == nil {
			shifts = []domain.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
	}
}

// HandleEndShift clears tonight's data under the same shift date. The UI
// confirms with the operator before calling.
func HandleEndShift(svc ShiftEnder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if err := svc.EndShift(); err != nil {
			writeOpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

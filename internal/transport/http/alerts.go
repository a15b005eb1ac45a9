package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jacknaylordunn/NightGuard-sub000/internal/app"
	"github.com/jacknaylordunn/NightGuard-sub000/internal/domain"
)

type AlertManager interface {
	Raise(ctx context.Context, in app.RaiseAlertInput) (domain.Alert, error)
	Dismiss(ctx context.Context, alertID string) error
	Active(ctx context.Context) ([]domain.Alert, error)
}

type raiseAlertRequest struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Location   string `json:"location,omitempty"`
	SenderName string `json:"sender_name"`
}

// HandleAlerts lists active alerts on GET and raises one on POST.
func HandleAlerts(svc AlertManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			alerts, err := svc.Active(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			if alerts == nil {
				alerts = []domain.Alert{}
			}
			writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
		case http.MethodPost:
			var req raiseAlertRequest
			if !decodeBody(w, r, &req) {
				return
			}
			alert, err := svc.Raise(r.Context(), app.RaiseAlertInput{
				Type:       domain.AlertType(req.Type),
				Message:    req.Message,
				Location:   req.Location,
				SenderName: req.SenderName,
			})
			if err != nil {
				writeAlertError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, alert)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleDismissAlert deactivates one alert: POST /alerts/{id}/dismiss.
func HandleDismissAlert(svc AlertManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/alerts/")
		id, ok := strings.CutSuffix(rest, "/dismiss")
		if !ok || id == "" || strings.Contains(id, "/") {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if err := svc.Dismiss(r.Context(), id); err != nil {
			writeAlertError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound):
		writeError(w, http.StatusNotFound, codeAlertNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidAlertType):
		writeError(w, http.StatusBadRequest, codeInvalidAlertType, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, codeNotReady, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

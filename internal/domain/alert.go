package domain

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertSOS  AlertType = "sos"
	AlertBOLO AlertType = "bolo"
	AlertInfo AlertType = "info"
)

// Alert is an ephemeral cross-device notification. It belongs to the venue,
// not the shift, so it survives rollover until explicitly dismissed.
type Alert struct {
	ID         string    `json:"id"`
	Type       AlertType `json:"type"`
	Message    string    `json:"message"`
	Location   string    `json:"location,omitempty"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
	Active     bool      `json:"active"`
}

func NewAlert(ts time.Time, typ AlertType, message, location, sender string) Alert {
	return Alert{
		ID:         uuid.NewString(),
		Type:       typ,
		Message:    message,
		Location:   location,
		SenderName: sender,
		Timestamp:  ts,
		Active:     true,
	}
}

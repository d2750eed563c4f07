package messages

import (
	"time"

	"github.com/BearBump/LiveCalls/internal/models"
)

// NotificationRequested: сообщение в топик уведомлений, его доставляет notify-worker.
type NotificationRequested struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	TargetCustomer string            `json:"target_customer"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DedupKey       string            `json:"dedup_key,omitempty"`
	RequestedAt    time.Time         `json:"requested_at"`
}

func FromNotification(n models.Notification) NotificationRequested {
	return NotificationRequested{
		ID:             n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		TargetCustomer: n.TargetCustomer,
		Metadata:       n.Metadata,
		DedupKey:       n.DedupKey,
		RequestedAt:    n.CreatedAt,
	}
}

func (m NotificationRequested) Notification() models.Notification {
	return models.Notification{
		ID:             m.ID,
		Type:           m.Type,
		Title:          m.Title,
		Body:           m.Body,
		TargetCustomer: m.TargetCustomer,
		Metadata:       m.Metadata,
		DedupKey:       m.DedupKey,
		CreatedAt:      m.RequestedAt,
	}
}

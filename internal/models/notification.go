package models

import "time"

const (
	NotificationNewBid       = "new_bid"
	NotificationBidAccepted  = "bid_accepted"
	NotificationBidRejected  = "bid_rejected"
	NotificationBidConfirmed = "bid_confirmed"
	NotificationBidRenounced = "bid_renounced"
)

const (
	OutcomeDelivered = "delivered"
	OutcomeNoDevice  = "no_device"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

type Notification struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	TargetCustomer string            `json:"target_customer"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	DedupKey       string            `json:"dedup_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NotificationRecord is the audit trail entry, written whatever the push outcome was.
type NotificationRecord struct {
	Notification
	Outcome   string
	MessageID string
	Error     string
}

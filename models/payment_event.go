package models

import "time"

// PaymentEvent is the message published to Kafka when a transaction
// reaches a terminal state.
type PaymentEvent struct {
	Type          string      `json:"type"` // "payment_succeeded" or "payment_failed"
	Gateway       string      `json:"gateway"`
	TransactionID string      `json:"transaction_id"`
	UserID        string      `json:"user_id"`
	Amount        MajorAmount `json:"amount"`
	AmountPaisa   MinorAmount `json:"amount_paisa"`
	Currency      string      `json:"currency"`
	Reference     string      `json:"reference,omitempty"` // gateway reference
	Timestamp     time.Time   `json:"timestamp"`           // UTC event time
}

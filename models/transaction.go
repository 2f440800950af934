package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionStatus string

const (
	StatusInitiated  TransactionStatus = "INITIATED"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusSuccess    TransactionStatus = "SUCCESS"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// NonTerminalStatuses is the set of statuses a conditional terminal
// update is allowed to match. Used as the compare half of the
// compare-and-swap that guards concurrent webhook/callback delivery.
var NonTerminalStatuses = []TransactionStatus{StatusInitiated, StatusProcessing}

// Transaction is one payment attempt against a gateway. TxnID is unique
// per collection and immutable once created. Amount and AmountPaisa are
// both stored because verification must replay the exact minor-unit
// value used at signing time.
type Transaction struct {
	ID               primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TxnID            string             `json:"txnId" bson:"txn_id"`
	Gateway          string             `json:"gateway" bson:"gateway"`
	MerchantID       string             `json:"merchantId" bson:"merchant_id"`
	AppID            string             `json:"appId" bson:"app_id"`
	ReferenceID      string             `json:"referenceId" bson:"reference_id"`
	InvoiceNo        string             `json:"invoiceNo,omitempty" bson:"invoice_no,omitempty"`
	Amount           MajorAmount        `json:"amount" bson:"amount"`
	AmountPaisa      MinorAmount        `json:"amountPaisa" bson:"amount_paisa"`
	Currency         string             `json:"currency" bson:"currency"`
	Description      string             `json:"description,omitempty" bson:"description,omitempty"`
	Status           TransactionStatus  `json:"status" bson:"status"`
	GatewayReference string             `json:"gatewayReference,omitempty" bson:"gateway_reference,omitempty"`
	PaymentMethod    string             `json:"paymentMethod,omitempty" bson:"payment_method,omitempty"`
	ErrorMessage     string             `json:"errorMessage,omitempty" bson:"error_message,omitempty"`
	UserID           string             `json:"userId" bson:"user_id"`
	UserDefined1     string             `json:"userDefined1,omitempty" bson:"user_defined_1,omitempty"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

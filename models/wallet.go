package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the wallet balance. UserID is the externally assigned
// identifier used by clients; the internal _id is what wallet
// transactions reference. The wallet field is mutated only through an
// atomic $inc, never read-modify-write.
type User struct {
	ID     primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID string             `json:"userId" bson:"user_id"`
	Name   string             `json:"name,omitempty" bson:"name,omitempty"`
	Email  string             `json:"email,omitempty" bson:"email,omitempty"`
	Wallet float64            `json:"wallet" bson:"wallet"`
}

const (
	WalletTxTypeTopUp     = "wallet top-up"
	WalletTxStatusSuccess = "success"
)

// WalletTransaction records one wallet credit. A unique partial index
// on (transaction_id) where status = "success" is the idempotency
// boundary: inserting a second successful credit for the same
// originating transaction fails with a duplicate-key error.
type WalletTransaction struct {
	ID                 primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	User               primitive.ObjectID `json:"user" bson:"user"`
	Amount             MajorAmount        `json:"amount" bson:"amount"`
	Type               string             `json:"type" bson:"type"`
	Status             string             `json:"status" bson:"status"`
	TransactionID      string             `json:"transactionId" bson:"transaction_id"`
	Currency           string             `json:"currency" bson:"currency"`
	ExternalPaymentRef string             `json:"externalPaymentRef,omitempty" bson:"external_payment_ref,omitempty"`
	PaymentID          string             `json:"paymentId,omitempty" bson:"payment_id,omitempty"`
	Reference          string             `json:"reference,omitempty" bson:"reference,omitempty"`
	UserWalletUpdated  bool               `json:"userWalletUpdated" bson:"user_wallet_updated"`
	CreatedAt          time.Time          `json:"createdAt" bson:"created_at"`
}

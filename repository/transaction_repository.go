package repository

import (
	"context"
	goerrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
)

// TerminalUpdate carries the field set written on a terminal transition.
// GatewayReference, PaymentMethod and ErrorMessage are written only
// here, never on intermediate updates.
type TerminalUpdate struct {
	Status           models.TransactionStatus
	GatewayReference string
	PaymentMethod    string
	ErrorMessage     string
}

type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	FindByTxnID(ctx context.Context, txnID string) (*models.Transaction, error)
	FindByGatewayReference(ctx context.Context, ref string) (*models.Transaction, error)
	MarkProcessing(ctx context.Context, txnID, gatewayReference string) error
	// MarkTerminal attempts the compare-and-swap from a non-terminal
	// status to upd.Status. It reports whether this call performed the
	// transition; false means the transaction was already terminal.
	MarkTerminal(ctx context.Context, txnID string, upd TerminalUpdate) (bool, error)
}

type TransactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database, collection string) *TransactionRepository {
	return &TransactionRepository{collection: db.Collection(collection)}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, txn)
	return err
}

func (r *TransactionRepository) FindByTxnID(ctx context.Context, txnID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"txn_id": txnID}).Decode(&txn)
	if goerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("Transaction not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// FindByGatewayReference resolves a transaction from the gateway-side
// order number, the only identifier some callbacks carry.
func (r *TransactionRepository) FindByGatewayReference(ctx context.Context, ref string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"gateway_reference": ref}).Decode(&txn)
	if goerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("Transaction not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// MarkProcessing records gateway page-generation acknowledgement. Only
// an INITIATED transaction can move to PROCESSING.
func (r *TransactionRepository) MarkProcessing(ctx context.Context, txnID, gatewayReference string) error {
	filter := bson.M{"txn_id": txnID, "status": models.StatusInitiated}
	update := bson.M{"$set": bson.M{
		"status":            models.StatusProcessing,
		"gateway_reference": gatewayReference,
		"updated_at":        time.Now().UTC(),
	}}
	_, err := r.collection.UpdateOne(ctx, filter, update)
	return err
}

func (r *TransactionRepository) MarkTerminal(ctx context.Context, txnID string, upd TerminalUpdate) (bool, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":       upd.Status,
		"completed_at": now,
		"updated_at":   now,
	}
	if upd.GatewayReference != "" {
		set["gateway_reference"] = upd.GatewayReference
		set["reference_id"] = upd.GatewayReference
	}
	if upd.PaymentMethod != "" {
		set["payment_method"] = upd.PaymentMethod
	}
	if upd.ErrorMessage != "" {
		set["error_message"] = upd.ErrorMessage
	}

	// The status filter is the compare half of the CAS: a concurrent
	// webhook and redirect callback can both reach here, but only one
	// update matches a non-terminal document.
	filter := bson.M{
		"txn_id": txnID,
		"status": bson.M{"$in": models.NonTerminalStatuses},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

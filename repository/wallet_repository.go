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

type WalletStore interface {
	// CreateSuccessful inserts a successful wallet transaction. It
	// reports false without error when a successful record for the same
	// transaction_id already exists — the duplicate-key result of the
	// unique partial index, which is the idempotency boundary for
	// wallet crediting.
	CreateSuccessful(ctx context.Context, wt *models.WalletTransaction) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.WalletTransaction, error)
}

type WalletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database, collection string) *WalletRepository {
	return &WalletRepository{collection: db.Collection(collection)}
}

func (r *WalletRepository) CreateSuccessful(ctx context.Context, wt *models.WalletTransaction) (bool, error) {
	wt.Status = models.WalletTxStatusSuccess
	wt.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, wt)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *WalletRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.WalletTransaction, error) {
	var wt models.WalletTransaction
	err := r.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&wt)
	if goerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("Wallet transaction not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &wt, nil
}

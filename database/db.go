package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	MongoClient *mongo.Client
	DB          *mongo.Database
)

// Collection names. ConnectIPS and HBL transactions live in separate
// collections, each with a unique txn_id index.
const (
	TransactionsCollection       = "transactions"
	HBLTransactionsCollection    = "hbl_transactions"
	WalletTransactionsCollection = "wallet_transactions"
	UsersCollection              = "users"
)

// ConnectWithConfig connects to MongoDB using the provided URI and database name.
func ConnectWithConfig(mongoURL, dbName string) error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(mongoURL)

	client, err := mongo.Connect(timeoutCtx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(timeoutCtx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	MongoClient = client
	DB = client.Database(dbName)
	log.Println("[PaymentGateway] Connected to MongoDB")
	return nil
}

// EnsureIndexes creates the indexes the payment flow relies on. The
// unique partial index on successful wallet transactions is the actual
// concurrency guard for wallet crediting; it must exist before the
// service takes traffic.
func EnsureIndexes(ctx context.Context) error {
	for _, coll := range []string{TransactionsCollection, HBLTransactionsCollection} {
		_, err := DB.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "txn_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("creating txn_id index on %s: %w", coll, err)
		}
	}

	_, err := DB.Collection(WalletTransactionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": "success"}),
	})
	if err != nil {
		return fmt.Errorf("creating wallet transaction index: %w", err)
	}

	_, err = DB.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating user_id index: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func Close() error {
	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer disconnectCancel()

	if err := MongoClient.Disconnect(disconnectCtx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	log.Println("[PaymentGateway] Disconnected from MongoDB")
	return nil
}

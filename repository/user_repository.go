package repository

import (
	"context"
	goerrors "errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	apperrors "payment-gateway-service/errors"
	"payment-gateway-service/models"
)

type UserStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.User, error)
	IncrementWallet(ctx context.Context, userID string, amount models.MajorAmount) error
}

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database, collection string) *UserRepository {
	return &UserRepository{collection: db.Collection(collection)}
}

// FindByUserID looks a user up by the externally assigned identifier,
// not the internal _id.
func (r *UserRepository) FindByUserID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&user)
	if goerrors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("User not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// IncrementWallet credits the wallet with a single atomic $inc.
// The balance is never read, modified and written back.
func (r *UserRepository) IncrementWallet(ctx context.Context, userID string, amount models.MajorAmount) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$inc": bson.M{"wallet": float64(amount)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("User not found", nil)
	}
	return nil
}

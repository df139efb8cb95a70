package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-backend/internal/model"
)

const pushSubscriptionsCollection = "pushsubscriptions"

// pushSubscriptionDoc is the document shape of a subscription in MongoDB.
type pushSubscriptionDoc struct {
	UserID       string        `bson:"userId"`
	Subscription bson.RawValue `bson:"subscription"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore creates a store over the subscriptions collection of database.
func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(pushSubscriptionsCollection),
	}
}

// EnsureIndexes creates the unique userId index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create userId index: %w", err)
	}
	return nil
}

func (s *MongoStore) UpsertPushSubscription(ctx context.Context, userID string, subscription json.RawMessage) error {
	payload, err := subscriptionValue(subscription)
	if err != nil {
		return fmt.Errorf("decode subscription for %s: %w", userID, err)
	}

	now := time.Now().UTC()
	update := bson.M{
		"$set":         bson.M{"subscription": payload, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	_, err = s.coll.UpdateOne(ctx, bson.M{"userId": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) GetPushSubscription(ctx context.Context, userID string) (*model.PushSubscription, error) {
	var doc pushSubscriptionDoc
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription for %s: %w", userID, err)
	}

	raw, err := rawValueJSON(doc.Subscription)
	if err != nil {
		return nil, fmt.Errorf("encode subscription for %s: %w", userID, err)
	}
	return &model.PushSubscription{
		UserID:       doc.UserID,
		Subscription: raw,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) DeletePushSubscription(ctx context.Context, userID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("delete push subscription for %s: %w", userID, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// subscriptionValue converts the client's JSON into a BSON value with key
// order and integer widths intact. The payload is wrapped in a document
// because it may be a scalar.
func subscriptionValue(subscription json.RawMessage) (bson.RawValue, error) {
	wrapped := make([]byte, 0, len(subscription)+6)
	wrapped = append(wrapped, `{"v":`...)
	wrapped = append(wrapped, subscription...)
	wrapped = append(wrapped, '}')

	var doc bson.Raw
	if err := bson.UnmarshalExtJSON(wrapped, false, &doc); err != nil {
		return bson.RawValue{}, err
	}
	return doc.LookupErr("v")
}

// rawValueJSON renders a stored BSON value as relaxed JSON. The value is
// wrapped in a document because it may be a scalar.
func rawValueJSON(v bson.RawValue) ([]byte, error) {
	ext, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(ext, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.V, nil
}

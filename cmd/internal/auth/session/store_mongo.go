package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const sessionsCollection = "sessions"

// MongoStore implements Store over the "sessions" collection. Documents are
// keyed by device id and expire through a TTL index on expiresAt.
type MongoStore struct {
	coll *mongo.Collection
}

type sessionDoc struct {
	DeviceID       string    `bson:"_id"`
	UserID         string    `bson:"userId"`
	IP             string    `bson:"ip"`
	Title          string    `bson:"title"`
	LastActiveDate time.Time `bson:"lastActiveDate"`
	ExpiresAt      time.Time `bson:"expiresAt"`
	CreatedAt      time.Time `bson:"createdAt"`
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(sessionsCollection)}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("session: ensure indexes: %w", err)
	}
	return nil
}

func (d sessionDoc) session() Session {
	return Session{
		DeviceID:       d.DeviceID,
		UserID:         d.UserID,
		IP:             d.IP,
		Title:          d.Title,
		LastActiveDate: d.LastActiveDate.UTC(),
		ExpiresAt:      d.ExpiresAt.UTC(),
		CreatedAt:      d.CreatedAt.UTC(),
	}
}

func (s *MongoStore) Create(ctx context.Context, sess Session) error {
	_, err := s.coll.InsertOne(ctx, sessionDoc{
		DeviceID:       sess.DeviceID,
		UserID:         sess.UserID,
		IP:             sess.IP,
		Title:          sess.Title,
		LastActiveDate: sess.LastActiveDate.UTC(),
		ExpiresAt:      sess.ExpiresAt.UTC(),
		CreatedAt:      sess.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (Session, error) {
	var d sessionDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("session: find: %w", err)
	}
	return d.session(), nil
}

func (s *MongoStore) Get(ctx context.Context, deviceID string) (Session, error) {
	return s.findOne(ctx, bson.M{"_id": deviceID})
}

func (s *MongoStore) GetActive(ctx context.Context, deviceID string, issuedAt time.Time) (Session, error) {
	return s.findOne(ctx, bson.M{"_id": deviceID, "lastActiveDate": issuedAt.UTC()})
}

func (s *MongoStore) Rotate(ctx context.Context, deviceID string, prev, next, expiresAt time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": deviceID, "lastActiveDate": prev.UTC()},
		bson.M{"$set": bson.M{"lastActiveDate": next.UTC(), "expiresAt": expiresAt.UTC()}},
	)
	if err != nil {
		return fmt.Errorf("session: rotate: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *MongoStore) DeleteActive(ctx context.Context, deviceID string, issuedAt time.Time) error {
	return s.deleteOne(ctx, bson.M{"_id": deviceID, "lastActiveDate": issuedAt.UTC()})
}

func (s *MongoStore) Delete(ctx context.Context, deviceID string) error {
	return s.deleteOne(ctx, bson.M{"_id": deviceID})
}

func (s *MongoStore) deleteOne(ctx context.Context, filter bson.M) error {
	res, err := s.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string, now time.Time) ([]Session, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"userId": userID, "expiresAt": bson.M{"$gt": now.UTC()}},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}

	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	out := make([]Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.session())
	}
	return out, nil
}

func (s *MongoStore) DeleteOthers(ctx context.Context, userID, keepDeviceID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"userId": userID, "_id": bson.M{"$ne": keepDeviceID}})
	if err != nil {
		return 0, fmt.Errorf("session: delete others: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("session: delete all: %w", err)
	}
	return nil
}

var _ Store = (*MongoStore)(nil)

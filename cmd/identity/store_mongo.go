package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bloggers/cmd/internal/paging"
)

const (
	usersCollection = "users"

	idxLoginUnique = "users_login_norm_unique"
	idxEmailUnique = "users_email_unique"
)

// MongoStore persists users in the "users" collection.
// The database handle is owned by the caller.
type MongoStore struct {
	coll *mongo.Collection
}

type confirmationDoc struct {
	IsConfirmed      bool      `bson:"isConfirmed"`
	ConfirmationCode string    `bson:"confirmationCode,omitempty"`
	ExpirationDate   time.Time `bson:"expirationDate,omitempty"`
}

type recoveryDoc struct {
	RecoveryCode   string    `bson:"recoveryCode,omitempty"`
	ExpirationDate time.Time `bson:"expirationDate,omitempty"`
}

type userDoc struct {
	ID                bson.ObjectID   `bson:"_id"`
	Login             string          `bson:"login"`
	LoginNorm         string          `bson:"loginNorm"`
	Email             string          `bson:"email"`
	PasswordHash      string          `bson:"passwordHash"`
	CreatedAt         time.Time       `bson:"createdAt"`
	EmailConfirmation confirmationDoc `bson:"emailConfirmation"`
	PasswordRecovery  recoveryDoc     `bson:"passwordRecovery"`
	DeletedAt         *time.Time      `bson:"deletedAt,omitempty"`
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the uniqueness and lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "loginNorm", Value: 1}},
			Options: options.Index().SetName(idxLoginUnique).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(idxEmailUnique).SetUnique(true),
		},
		{Keys: bson.D{{Key: "emailConfirmation.confirmationCode", Value: 1}}},
		{Keys: bson.D{{Key: "passwordRecovery.recoveryCode", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("identity: ensure indexes: %w", err)
	}
	return nil
}

func toUserDoc(u User) (userDoc, error) {
	oid, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return userDoc{}, fmt.Errorf("identity: user id %q: %w", u.ID, err)
	}
	return userDoc{
		ID:           oid,
		Login:        u.Login,
		LoginNorm:    NormalizeLogin(u.Login),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		EmailConfirmation: confirmationDoc{
			IsConfirmed:      u.EmailConfirmed,
			ConfirmationCode: u.Confirmation.Value,
			ExpirationDate:   u.Confirmation.ExpiresAt,
		},
		PasswordRecovery: recoveryDoc{
			RecoveryCode:   u.Recovery.Value,
			ExpirationDate: u.Recovery.ExpiresAt,
		},
		DeletedAt: u.DeletedAt,
	}, nil
}

func (d userDoc) user() User {
	return User{
		ID:             d.ID.Hex(),
		Login:          d.Login,
		Email:          d.Email,
		PasswordHash:   d.PasswordHash,
		CreatedAt:      d.CreatedAt.UTC(),
		EmailConfirmed: d.EmailConfirmation.IsConfirmed,
		Confirmation: Code{
			Value:     d.EmailConfirmation.ConfirmationCode,
			ExpiresAt: d.EmailConfirmation.ExpirationDate.UTC(),
		},
		Recovery: Code{
			Value:     d.PasswordRecovery.RecoveryCode,
			ExpiresAt: d.PasswordRecovery.ExpirationDate.UTC(),
		},
		DeletedAt: d.DeletedAt,
	}
}

func live(f bson.M) bson.M {
	f["deletedAt"] = nil
	return f
}

func (s *MongoStore) Insert(ctx context.Context, u User) error {
	const op = "identity.MongoStore.Insert"

	doc, err := toUserDoc(u)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ConflictError{Op: op, Field: duplicateField(err)}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func duplicateField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, idxEmailUnique):
		return "email"
	case strings.Contains(msg, idxLoginUnique):
		return "login"
	default:
		return ""
	}
}

func (s *MongoStore) ByID(ctx context.Context, id string) (User, error) {
	const op = "identity.MongoStore.ByID"

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return User{}, NotFoundError{Op: op, Key: id}
	}
	return s.findOne(ctx, op, bson.M{"_id": oid})
}

func (s *MongoStore) ByLoginOrEmail(ctx context.Context, v string) (User, error) {
	return s.findOne(ctx, "identity.MongoStore.ByLoginOrEmail", bson.M{
		"$or": bson.A{
			bson.M{"loginNorm": NormalizeLogin(v)},
			bson.M{"email": NormalizeEmail(v)},
		},
	})
}

func (s *MongoStore) ByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, "identity.MongoStore.ByEmail", bson.M{"email": email})
}

func (s *MongoStore) ByConfirmationCode(ctx context.Context, code string) (User, error) {
	return s.findOne(ctx, "identity.MongoStore.ByConfirmationCode", bson.M{"emailConfirmation.confirmationCode": code})
}

func (s *MongoStore) ByRecoveryCode(ctx context.Context, code string) (User, error) {
	return s.findOne(ctx, "identity.MongoStore.ByRecoveryCode", bson.M{"passwordRecovery.recoveryCode": code})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (User, error) {
	var d userDoc
	if err := s.coll.FindOne(ctx, live(filter)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, NotFoundError{Op: op}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return d.user(), nil
}

func (s *MongoStore) MarkConfirmed(ctx context.Context, id, code string) error {
	return s.updateOne(ctx, "identity.MongoStore.MarkConfirmed", id,
		bson.M{
			"emailConfirmation.isConfirmed":      false,
			"emailConfirmation.confirmationCode": code,
		},
		bson.M{"$set": bson.M{"emailConfirmation.isConfirmed": true}},
	)
}

func (s *MongoStore) SetConfirmation(ctx context.Context, id string, c Code) error {
	return s.updateOne(ctx, "identity.MongoStore.SetConfirmation", id, bson.M{},
		bson.M{"$set": bson.M{
			"emailConfirmation.confirmationCode": c.Value,
			"emailConfirmation.expirationDate":   c.ExpiresAt.UTC(),
		}},
	)
}

func (s *MongoStore) SetRecovery(ctx context.Context, id string, c Code) error {
	return s.updateOne(ctx, "identity.MongoStore.SetRecovery", id, bson.M{},
		bson.M{"$set": bson.M{
			"passwordRecovery.recoveryCode":   c.Value,
			"passwordRecovery.expirationDate": c.ExpiresAt.UTC(),
		}},
	)
}

func (s *MongoStore) SetPassword(ctx context.Context, id, hash string) error {
	return s.updateOne(ctx, "identity.MongoStore.SetPassword", id, bson.M{},
		bson.M{
			"$set":   bson.M{"passwordHash": hash},
			"$unset": bson.M{"passwordRecovery.recoveryCode": "", "passwordRecovery.expirationDate": ""},
		},
	)
}

func (s *MongoStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	return s.updateOne(ctx, "identity.MongoStore.SoftDelete", id, bson.M{},
		bson.M{"$set": bson.M{"deletedAt": now.UTC()}},
	)
}

func (s *MongoStore) updateOne(ctx context.Context, op, id string, filter bson.M, update bson.M) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return NotFoundError{Op: op, Key: id}
	}
	filter["_id"] = oid

	res, err := s.coll.UpdateOne(ctx, live(filter), update)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return NotFoundError{Op: op, Key: id}
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, f ListFilter, q paging.Query) ([]User, int64, error) {
	const op = "identity.MongoStore.List"

	filter := bson.M{}
	var or bson.A
	if t := strings.TrimSpace(f.SearchLogin); t != "" {
		or = append(or, bson.M{"login": bson.Regex{Pattern: regexp.QuoteMeta(t), Options: "i"}})
	}
	if t := strings.TrimSpace(f.SearchEmail); t != "" {
		or = append(or, bson.M{"email": bson.Regex{Pattern: regexp.QuoteMeta(t), Options: "i"}})
	}
	if len(or) > 0 {
		filter["$or"] = or
	}
	filter = live(filter)

	find := options.Find().
		SetSort(bson.D{{Key: q.SortBy, Value: q.SortSign()}, {Key: "_id", Value: q.SortSign()}}).
		SetSkip(q.Skip()).
		SetLimit(q.Limit())

	docs, total, err := paging.Fetch(ctx,
		func(ctx context.Context) ([]userDoc, error) {
			cur, err := s.coll.Find(ctx, filter, find)
			if err != nil {
				return nil, err
			}
			var out []userDoc
			if err := cur.All(ctx, &out); err != nil {
				return nil, err
			}
			return out, nil
		},
		func(ctx context.Context) (int64, error) {
			return s.coll.CountDocuments(ctx, filter)
		},
	)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	users := make([]User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.user())
	}
	return users, total, nil
}

func (s *MongoStore) DeleteAll(ctx context.Context) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("identity.MongoStore.DeleteAll: %w", err)
	}
	return nil
}

var _ Store = (*MongoStore)(nil)

// Package ids generates identifiers: ULIDs for devices and ObjectID hex
// strings for stored documents.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// NewULID returns a new ULID string (26 chars).
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewObjectID returns a fresh document id as 24 hex chars.
func NewObjectID() string {
	return bson.NewObjectID().Hex()
}

// IsObjectID reports whether s is a well-formed ObjectID hex string.
func IsObjectID(s string) bool {
	_, err := bson.ObjectIDFromHex(s)
	return err == nil
}

package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// maxBcryptCost bounds the work Verify spends on an imported bcrypt hash.
const maxBcryptCost = 14

// Hash validates password against the policy and returns its Argon2id encoding.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	h := phcHash{Params: c.Params, Salt: salt, Key: derive(password, c.Params, salt)}
	return h.String(), nil
}

// Verify reports whether password matches encodedHash. Malformed hashes and
// hashes whose stored cost exceeds the configured one fail with ErrInvalidHash.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	if isBcrypt(encodedHash) {
		return verifyBcrypt(encodedHash, password)
	}
	h, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if h.Params.exceeds(c.Params) {
		return false, ErrInvalidHash
	}
	return h.matches(password), nil
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh Hash
// of the same password: legacy bcrypt hashes and argon2id hashes weaker than c.
func (c Config) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	h, err := parsePHC(encodedHash)
	return err != nil || h.Params.weakerThan(c.Params)
}

func isBcrypt(h string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}

func verifyBcrypt(h, password string) (bool, error) {
	if cost, err := bcrypt.Cost([]byte(h)); err != nil || cost > maxBcryptCost {
		return false, ErrInvalidHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(h), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

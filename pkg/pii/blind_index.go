package pii

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Field names a PII column. Each field gets its own index key so equal values
// in different fields never share a blind index.
type Field string

const (
	FieldEmail      Field = "email"
	FieldPhone      Field = "phone"
	FieldProviderID Field = "provider_id"
)

var fields = []Field{FieldEmail, FieldPhone, FieldProviderID}

// IndexLen is the length of every blind index (hex encoded HMAC-SHA256).
const IndexLen = sha256.Size * 2

// BlindIndexer derives fixed-length HMAC-SHA256 lookup tokens from canonical values.
// A nil or zero BlindIndexer fails closed.
type BlindIndexer struct {
	keys map[Field][]byte
}

// NewBlindIndexer derives one HMAC key per field from masterKey using HKDF-SHA256.
func NewBlindIndexer(masterKey []byte) (*BlindIndexer, error) {
	if len(masterKey) < MinKeyLen {
		return nil, ErrKeyUnavailable
	}
	keys := make(map[Field][]byte, len(fields))
	for _, f := range fields {
		k := make([]byte, sha256.Size)
		r := hkdf.New(sha256.New, masterKey, nil, []byte("blind-index:"+string(f)))
		if _, err := io.ReadFull(r, k); err != nil {
			return nil, fmt.Errorf("derive %s index key: %w", f, err)
		}
		keys[f] = k
	}
	return &BlindIndexer{keys: keys}, nil
}

// Index returns the blind index of an already canonicalized value.
func (b *BlindIndexer) Index(field Field, canonical string) (string, error) {
	if b == nil {
		return "", ErrKeyUnavailable
	}
	key, ok := b.keys[field]
	if !ok || len(key) == 0 {
		return "", ErrKeyUnavailable
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

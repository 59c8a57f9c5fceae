package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// Sealed is the at-rest form of one PII value: authenticated ciphertext plus its blind index.
// Both halves are always produced together from one canonical string.
type Sealed struct {
	Cipher []byte
	Index  string
}

// IsZero reports whether nothing was sealed (the field is unset).
func (s Sealed) IsZero() bool { return len(s.Cipher) == 0 && s.Index == "" }

// Vault encrypts PII with AES-256-GCM and indexes it with a BlindIndexer.
type Vault struct {
	aead      cipher.AEAD
	indexer   *BlindIndexer
	canonical map[Field]Canonicalizer
}

type VaultOption func(*Vault)

// WithCanonicalizer overrides the canonical form used for a field.
func WithCanonicalizer(f Field, c Canonicalizer) VaultOption {
	return func(v *Vault) { v.canonical[f] = c }
}

func NewVault(encKey []byte, indexer *BlindIndexer, opts ...VaultOption) (*Vault, error) {
	if len(encKey) != MinKeyLen || indexer == nil {
		return nil, ErrKeyUnavailable
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	v := &Vault{
		aead:    aead,
		indexer: indexer,
		canonical: map[Field]Canonicalizer{
			FieldEmail:      CanonicalEmail,
			FieldPhone:      CanonicalPhone,
			FieldProviderID: CanonicalProviderID,
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Canonicalize returns the canonical form of plaintext for field.
func (v *Vault) Canonicalize(f Field, plaintext string) string {
	if v == nil {
		return plaintext
	}
	if c, ok := v.canonical[f]; ok && c != nil {
		return c(plaintext)
	}
	return plaintext
}

// Index canonicalizes plaintext exactly as Seal does and returns its blind index.
// All lookups go through here.
func (v *Vault) Index(f Field, plaintext string) (string, error) {
	if v == nil {
		return "", ErrKeyUnavailable
	}
	return v.indexer.Index(f, v.Canonicalize(f, plaintext))
}

// Seal canonicalizes once and feeds the same string to encryption and indexing.
// The field name is bound as additional data so ciphertexts cannot move between fields.
func (v *Vault) Seal(f Field, plaintext string) (Sealed, error) {
	if v == nil || v.aead == nil {
		return Sealed{}, ErrKeyUnavailable
	}
	canonical := v.Canonicalize(f, plaintext)
	idx, err := v.indexer.Index(f, canonical)
	if err != nil {
		return Sealed{}, err
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("nonce: %w", err)
	}
	ct := v.aead.Seal(nonce, nonce, []byte(canonical), []byte(f))
	return Sealed{Cipher: ct, Index: idx}, nil
}

// Open authenticates and decrypts a ciphertext produced by Seal for the same field.
func (v *Vault) Open(f Field, ciphertext []byte) (string, error) {
	if v == nil || v.aead == nil {
		return "", ErrKeyUnavailable
	}
	ns := v.aead.NonceSize()
	if len(ciphertext) < ns+v.aead.Overhead() {
		return "", ErrTampered
	}
	pt, err := v.aead.Open(nil, ciphertext[:ns], ciphertext[ns:], []byte(f))
	if err != nil {
		return "", ErrTampered
	}
	return string(pt), nil
}

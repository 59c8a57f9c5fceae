package pii

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// MinKeyLen is the minimum accepted length for the index master key and the
// exact length of the AES-256 encryption key.
const MinKeyLen = 32

var (
	ErrKeyUnavailable = errors.New("pii: key missing or malformed")
	ErrTampered       = errors.New("pii: ciphertext failed authentication")
)

// ParseKey decodes a key given as hex or standard base64.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrKeyUnavailable
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return nil, ErrKeyUnavailable
}

package helpers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// InviteSecretBytes is the entropy of an invite secret before encoding.
const InviteSecretBytes = 32

// GenToken returns n random bytes as unpadded base64url.
func GenToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the one-way hash persisted in place of a bearer secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// KeySession is the Redis hash holding the active session of a user.
func KeySession(uid string) string {
	return "user:session:" + uid
}

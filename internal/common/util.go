package common

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// MakeRandHexString returns size random bytes encoded as hex (2*size chars).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeClientSecret derives a client secret for intentID.
func MakeClientSecret(intentID string) (string, error) {
	suffix, err := MakeRandHexString(12)
	if err != nil {
		return "", err
	}
	return intentID + ClientSecretSeparator + suffix, nil
}

// IntentIDFromSecret extracts the intent id from a client secret produced by
// MakeClientSecret. ok is false when the secret has no separator or no id.
func IntentIDFromSecret(secret string) (id string, ok bool) {
	i := strings.LastIndex(secret, ClientSecretSeparator)
	if i <= 0 {
		return "", false
	}
	return secret[:i], true
}

package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandomKey returns length random bytes, URL-safe base64 encoded.
func GenerateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	// err == nil only if len(b) bytes were read.
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

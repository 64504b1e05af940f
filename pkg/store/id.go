package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns a random hex string suitable as a session token.
func NewToken() string {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "token-unknown"
	}
	return hex.EncodeToString(b[:])
}

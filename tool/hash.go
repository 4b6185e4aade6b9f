package tool

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

func GenerateRandomUUID() string {
	return uuid.New().String()
}

// GenerateShortID returns a 12 hex character id, short enough to read out
// or type on a phone.
func GenerateShortID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(GenerateRandomUUID(), "-", "")[:12] // fallback
	}
	return hex.EncodeToString(b)
}

package outbox

import (
	"crypto/rand"
	"encoding/hex"
)

// randomInstanceID generates a short identifier for log attribution.
func randomInstanceID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "outbox-unknown"
	}
	return "outbox-" + hex.EncodeToString(buf[:])
}

package snapshot

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Marshal serialises a Snapshot to JSON. Parse reads the result back.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Hash returns the SHA-256 hex digest of the snapshot's responses, ignoring
// ID, label and capture time. Two captures of identical API state share a
// hash.
func Hash(s *Snapshot) (string, error) {
	data, err := json.Marshal(struct {
		Responses   []CapturedResponse `json:"responses"`
		Screenshots []Screenshot       `json:"screenshots,omitempty"`
	}{s.Responses, s.Screenshots})
	if err != nil {
		return "", fmt.Errorf("snapshot: hash: %w", err)
	}
	return HashBytes(data), nil
}

// HashBytes returns the SHA-256 hex digest of b.
func HashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h)
}

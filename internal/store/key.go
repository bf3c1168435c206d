package store

import (
	"encoding/base64"
	"strings"
)

// ItemKey derives the stable identity key from the canonical homepage URL.
// The encoding is deterministic across runs; identity is never recomputed
// from mutable document fields.
func ItemKey(homepage string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strings.TrimSpace(homepage)))
}

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PrincipalKey returns "<kind>:<digest>" for a caller identity so raw user
// IDs and addresses never end up as keys in in-process maps.
func PrincipalKey(kind, id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return kind + ":" + hex.EncodeToString(sum[:16])
}

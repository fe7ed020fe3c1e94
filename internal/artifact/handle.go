package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// HandleLength is the fixed length of every download handle.
const HandleLength = sha256.Size * 2

// NewHandle derives an opaque download handle from the artifact path, the
// registration time and a fresh random UUID.
func NewHandle(path string, now time.Time) string {
	h := sha256.New()
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))
	h.Write([]byte{0})
	id := uuid.New()
	h.Write(id[:])
	return hex.EncodeToString(h.Sum(nil))
}

// ValidHandle reports whether s has the shape of a handle.
func ValidHandle(s string) bool {
	if len(s) != HandleLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// fingerprint is a short, non-secret reference to a handle for logs and events.
func fingerprint(handle string) string {
	if len(handle) < 12 {
		return handle
	}
	return handle[:12]
}

// Package ids generates identifiers for cycles and genes.
package ids

import (
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
)

// NewCycleID returns a random UUID used to correlate one cycle across logs, storage and notifications.
func NewCycleID() string {
	return uuid.NewString()
}

// NewGeneID returns a short, URL-safe identifier: a millisecond timestamp followed by
// four random bytes, base62 encoded.
func NewGeneID() string {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], uint64(time.Now().UnixMilli()))
	if _, err := rand.Read(buf[8:]); err != nil {
		u := uuid.New()
		copy(buf[8:], u[:4])
	}
	return base62.EncodeToString(buf)
}

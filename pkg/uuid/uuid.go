// Package uuid generates UUID v7 identifiers. The leading 48 bits carry
// the millisecond timestamp, so IDs sort by creation time and index well
// in sqlite.
package uuid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// UUID is a 16-byte UUID in the v7 layout of RFC 9562.
type UUID [16]byte

// NewV7 returns a fresh UUID v7: 48 bits of Unix millisecond timestamp,
// then 74 random bits with the version and variant fields set.
func NewV7() UUID {
	var u UUID

	ms := uint64(time.Now().UnixMilli())
	binary.BigEndian.PutUint64(u[:8], ms<<16)

	// rand.Read on crypto/rand never fails on supported platforms.
	if _, err := rand.Read(u[6:]); err != nil {
		panic(err)
	}

	u[6] = 0x70 | (u[6] & 0x0f) // version 7
	u[8] = 0x80 | (u[8] & 0x3f) // RFC 4122 variant

	return u
}

// Time returns the creation timestamp embedded in the UUID, at
// millisecond precision.
func (u UUID) Time() time.Time {
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 |
		int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms).UTC()
}

// String renders the canonical 8-4-4-4-12 hex form.
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
		u[0:4], u[4:6], u[6:8], u[8:10], u[10:16])
}

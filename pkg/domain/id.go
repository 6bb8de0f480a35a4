package domain

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// IDLength is the fixed length of every entity identifier: 24 lowercase hex
// characters encoding 12 bytes — 4 bytes of Unix seconds, 3 random machine
// bytes, 2 random process bytes, and a 3-byte counter.
const IDLength = 24

var (
	idMachine [3]byte
	idProcess [2]byte
	idCounter atomic.Uint32
)

func init() {
	var seed [9]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Errorf("domain: seed id generator: %w", err))
	}
	copy(idMachine[:], seed[0:3])
	copy(idProcess[:], seed[3:5])
	idCounter.Store(binary.BigEndian.Uint32(seed[5:9]))
}

// NewID returns a fresh identifier. IDs are monotonically non-decreasing in
// their time prefix but not guaranteed globally unique; backends detect
// collisions within their own key space and retry.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(t time.Time) string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(t.Unix()))
	copy(b[4:7], idMachine[:])
	copy(b[7:9], idProcess[:])
	c := idCounter.Add(1)
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return hex.EncodeToString(b[:])
}

// IsValidID reports whether s matches the 24-lowercase-hex identifier shape.
func IsValidID(s string) bool {
	if len(s) != IDLength {
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

// ValidateID returns a ValidationError when s is not a well-formed id.
func ValidateID(s string) error {
	if !IsValidID(s) {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a 24-character hex id", s)}
	}
	return nil
}

// IDTimestamp extracts the creation time encoded in an id's prefix.
func IDTimestamp(s string) (time.Time, bool) {
	if !IsValidID(s) {
		return time.Time{}, false
	}
	raw, err := hex.DecodeString(s[:8])
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(int64(binary.BigEndian.Uint32(raw)), 0).UTC(), true
}

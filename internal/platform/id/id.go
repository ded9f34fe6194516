// Package id generates opaque identifiers for log correlation.
package id

import (
	"encoding/base32"
	"strings"

	"github.com/louisbranch/leaderboard/internal/random"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 rendered as 26 lowercase base32 characters.
func NewID() (string, error) {
	raw, err := random.Bytes(16)
	if err != nil {
		return "", err
	}
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	return strings.ToLower(encoding.EncodeToString(raw)), nil
}

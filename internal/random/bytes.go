// Package random provides cryptographic randomness helpers.
//
// It reads from crypto/rand so values are suitable for unguessable
// challenges.
package random

import (
	crand "crypto/rand"
	"fmt"
	"io"
)

// Source produces random bytes. crypto/rand.Reader satisfies it.
type Source = io.Reader

// Bytes reads n bytes from crypto/rand.
func Bytes(n int) ([]byte, error) {
	return BytesFrom(crand.Reader, n)
}

// BytesFrom reads exactly n bytes from src.
func BytesFrom(src Source, n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("random byte count must be positive, got %d", n)
	}
	if src == nil {
		src = crand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

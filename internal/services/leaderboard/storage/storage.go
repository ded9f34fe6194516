package storage

import (
	"context"
	"errors"
)

// ErrNonceNotFound is returned when no challenge is stored for a client.
var ErrNonceNotFound = errors.New("nonce not found")

// ScoreRecord is one leaderboard row.
type ScoreRecord struct {
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

// NonceStore keeps at most one challenge per client identity.
type NonceStore interface {
	// PutNonce replaces any challenge stored for clientIdentity.
	PutNonce(ctx context.Context, clientIdentity, nonce string) error
	// TakeNonce atomically reads and deletes the challenge for
	// clientIdentity. It returns ErrNonceNotFound when none is stored.
	TakeNonce(ctx context.Context, clientIdentity string) (string, error)
}

// ScoreStore is an append-only table of scores.
type ScoreStore interface {
	InsertScore(ctx context.Context, record ScoreRecord) error
	// ListTopScores returns at most limit rows ordered by score descending.
	// Rows with equal scores come back in storage order.
	ListTopScores(ctx context.Context, limit int) ([]ScoreRecord, error)
}

// Store is the full persistence surface of the leaderboard service.
type Store interface {
	NonceStore
	ScoreStore
	Ping(ctx context.Context) error
	Close() error
}

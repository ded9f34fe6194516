// Package leaderboardfakes provides in-memory leaderboard storage fakes for tests.
package leaderboardfakes

import (
	"context"
	"sort"
	"sync"

	"github.com/louisbranch/leaderboard/internal/services/leaderboard/storage"
)

// Store is an in-memory storage.Store fake. Err fields, when set, are
// returned by the matching operation.
type Store struct {
	mu     sync.Mutex
	Nonces map[string]string
	Scores []storage.ScoreRecord

	PutNonceErr  error
	TakeNonceErr error
	InsertErr    error
	ListErr      error
	PingErr      error

	TakeCalls   int
	InsertCalls int
	ListLimits  []int
	Closed      bool
}

var _ storage.Store = (*Store)(nil)

// NewStore constructs a Store fake with initialized state.
func NewStore() *Store {
	return &Store{Nonces: make(map[string]string)}
}

func (s *Store) PutNonce(_ context.Context, clientIdentity, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutNonceErr != nil {
		return s.PutNonceErr
	}
	s.Nonces[clientIdentity] = nonce
	return nil
}

func (s *Store) TakeNonce(_ context.Context, clientIdentity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TakeCalls++
	if s.TakeNonceErr != nil {
		return "", s.TakeNonceErr
	}
	nonce, ok := s.Nonces[clientIdentity]
	if !ok {
		return "", storage.ErrNonceNotFound
	}
	delete(s.Nonces, clientIdentity)
	return nonce, nil
}

// Nonce returns the challenge currently stored for clientIdentity.
func (s *Store) Nonce(clientIdentity string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce, ok := s.Nonces[clientIdentity]
	return nonce, ok
}

func (s *Store) InsertScore(_ context.Context, record storage.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InsertCalls++
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.Scores = append(s.Scores, record)
	return nil
}

func (s *Store) ListTopScores(_ context.Context, limit int) ([]storage.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListLimits = append(s.ListLimits, limit)
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	sorted := append([]storage.ScoreRecord(nil), s.Scores...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PingErr
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

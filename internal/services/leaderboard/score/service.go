// Package score implements the leaderboard's two data operations: appending
// a score and reading the top of the table.
package score

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"unicode/utf8"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/storage"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxUsernameLength is the number of characters kept from a username.
	MaxUsernameLength = 24
	// DefaultLimit is used when a read does not ask for a row count.
	DefaultLimit = 10
	// MinLimit is the smallest row count a read can ask for.
	MinLimit = 1
)

// Service runs score operations against a ScoreStore.
type Service struct {
	store storage.ScoreStore
}

// NewService builds a Service over store.
func NewService(store storage.ScoreStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("score store is required")
	}
	return &Service{store: store}, nil
}

// InsertScore appends a score. Usernames longer than MaxUsernameLength
// characters are cut, never rejected.
func (s *Service) InsertScore(ctx context.Context, username string, score int64) error {
	record := storage.ScoreRecord{
		Username: TruncateUsername(username),
		Score:    score,
	}
	if err := s.store.InsertScore(ctx, record); err != nil {
		return apperrors.Wrap(apperrors.CodeDB, "insert score", err)
	}
	return nil
}

// TopScores returns the highest scores first. A nil limit reads
// DefaultLimit rows; limits below MinLimit read MinLimit rows.
func (s *Service) TopScores(ctx context.Context, limit *int) (ScoreList, error) {
	n := ClampLimit(limit)
	records, err := s.store.ListTopScores(ctx, n)
	if err != nil {
		return ScoreList{}, apperrors.Wrap(apperrors.CodeDB, "list top scores", err)
	}
	return ScoreList{Records: records}, nil
}

// ClampLimit resolves the effective row count for TopScores.
func ClampLimit(limit *int) int {
	if limit == nil {
		return DefaultLimit
	}
	return max(MinLimit, *limit)
}

// TruncateUsername NFC-normalizes name and keeps its first
// MaxUsernameLength characters.
func TruncateUsername(name string) string {
	name = norm.NFC.String(name)
	if utf8.RuneCountInString(name) <= MaxUsernameLength {
		return name
	}
	count := 0
	for idx := range name {
		if count == MaxUsernameLength {
			return name[:idx]
		}
		count++
	}
	return name
}

// ScoreList is the get_scores payload. On the wire it is an object keyed by
// row position ("0", "1", …) plus a "size" field, which is the shape game
// clients already parse.
type ScoreList struct {
	Records []storage.ScoreRecord
}

// Size is the number of rows returned.
func (l ScoreList) Size() int {
	return len(l.Records)
}

// MarshalJSON renders the positional object form.
func (l ScoreList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, record := range l.Records {
		encoded, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(i)))
		buf.WriteByte(':')
		buf.Write(encoded)
		buf.WriteByte(',')
	}
	buf.WriteString(`"size":`)
	buf.WriteString(strconv.Itoa(l.Size()))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

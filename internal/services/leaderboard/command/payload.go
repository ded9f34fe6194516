package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
)

// Payload is the typed form of a request's data field. Exactly one of
// NoncePayload, ScoresPayload or AddScorePayload.
type Payload interface {
	Command() Name
}

// NoncePayload is the get_nonce input; it carries no fields.
type NoncePayload struct{}

// ScoresPayload is the get_scores input.
type ScoresPayload struct {
	ScoreNumber *int
}

// AddScorePayload is the add_score input. Fields are nil when absent so the
// dispatcher can report which one is missing.
type AddScorePayload struct {
	Username *string
	Score    *int64
}

func (NoncePayload) Command() Name { return GetNonce }
func (ScoresPayload) Command() Name { return GetScores }
func (AddScorePayload) Command() Name { return AddScore }

// fields is the union of every field any command reads.
type fields struct {
	ScoreNumber *looseInt    `json:"score_number"`
	Username    *looseString `json:"username"`
	Score       *looseInt    `json:"score"`
}

// ParsePayload decodes data and builds the payload for command. Malformed
// data is reported before an unknown command, matching the order clients
// already expect.
func ParsePayload(command, data string) (Payload, error) {
	parsed, err := decodeFields(data)
	if err != nil {
		return nil, err
	}

	switch Name(command) {
	case GetNonce:
		return NoncePayload{}, nil
	case GetScores:
		p := ScoresPayload{}
		if parsed.ScoreNumber != nil {
			n := parsed.ScoreNumber.clampedInt()
			p.ScoreNumber = &n
		}
		return p, nil
	case AddScore:
		p := AddScorePayload{}
		if parsed.Username != nil {
			u := string(*parsed.Username)
			p.Username = &u
		}
		if parsed.Score != nil {
			s := int64(*parsed.Score)
			p.Score = &s
		}
		return p, nil
	default:
		return nil, apperrors.New(apperrors.CodeInvalidCommand, "unknown command "+strconv.Quote(command))
	}
}

// decodeFields reads the known fields from data. Any JSON value other than
// null is accepted; arrays and scalars carry no fields, so get_nonce works
// with them and the other commands report their missing fields.
func decodeFields(data string) (fields, error) {
	trimmed := bytes.TrimSpace([]byte(data))
	if !json.Valid(trimmed) {
		return fields{}, apperrors.New(apperrors.CodeInvalidJSON, "data is not valid JSON")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return fields{}, apperrors.New(apperrors.CodeInvalidJSON, "data is null")
	}
	if trimmed[0] != '{' {
		return fields{}, nil
	}
	var parsed fields
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return fields{}, apperrors.Wrap(apperrors.CodeInvalidJSON, "decode data", err)
	}
	return parsed, nil
}

// looseInt accepts JSON numbers (fractions truncated toward zero) and
// numeric strings.
type looseInt int64

func (n *looseInt) UnmarshalJSON(b []byte) error {
	text := string(b)
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = looseInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("not a number: %s", b)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return fmt.Errorf("number out of range: %s", b)
	}
	*n = looseInt(int64(f))
	return nil
}

func (n looseInt) clampedInt() int {
	v := int64(n)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int(v)
}

// looseString accepts JSON strings and numbers; numbers keep their literal
// text.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("not a string: %s", b)
	}
	*s = looseString(num.String())
	return nil
}

// Package command maps a leaderboard request onto one of its operations and
// renders the response envelope.
package command

// Name identifies a leaderboard command.
type Name string

const (
	GetNonce  Name = "get_nonce"
	GetScores Name = "get_scores"
	AddScore  Name = "add_score"
)

// RequiresAuth reports whether the command must carry a fresh nonce proof.
func (n Name) RequiresAuth() bool {
	return n == GetScores || n == AddScore
}

// Field is a request value that may be absent. An empty string that was
// sent is present.
type Field struct {
	Value   string
	Present bool
}

// Set returns a present Field.
func Set(value string) Field {
	return Field{Value: value, Present: true}
}

// Request is everything the dispatcher needs from the transport. It is
// built once per request and never modified.
type Request struct {
	ClientIdentity string
	Command        Field
	Data           Field
	// ClientNonce and Hash come from the cnonce and hash headers. An empty
	// cnonce header is present; only a missing one is rejected.
	ClientNonce Field
	Hash        string
	// RawBody is the exact request body the proof hash covers.
	RawBody []byte
}

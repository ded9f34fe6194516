package command

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/nonce"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/score"
)

// Authenticator issues challenges and checks proofs.
type Authenticator interface {
	IssueChallenge(ctx context.Context, clientIdentity string) (string, error)
	VerifyProof(ctx context.Context, proof nonce.Proof) error
}

// Scores runs the score operations.
type Scores interface {
	InsertScore(ctx context.Context, username string, score int64) error
	TopScores(ctx context.Context, limit *int) (score.ScoreList, error)
}

// NonceResponse is the get_nonce reply payload.
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// Dispatcher routes requests to operations. It holds no per-request state.
type Dispatcher struct {
	auth     Authenticator
	scores   Scores
	observer Observer
}

// NewDispatcher builds a Dispatcher. A nil observer is replaced by
// NopObserver.
func NewDispatcher(auth Authenticator, scores Scores, observer Observer) (*Dispatcher, error) {
	if auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if scores == nil {
		return nil, errors.New("score service is required")
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Dispatcher{auth: auth, scores: scores, observer: observer}, nil
}

// Dispatch handles one request and returns its single envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Envelope {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = d.observer.RequestReceived(ctx, req)
	env := d.dispatch(ctx, req)
	d.observer.ResponseEmitted(ctx, env)
	return env
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) Envelope {
	if !req.Command.Present {
		return MissingCommand()
	}
	cmd := req.Command.Value
	if !req.Data.Present {
		return Failure(cmd, apperrors.New(apperrors.CodeMissingData, "data field is missing"))
	}

	payload, err := ParsePayload(cmd, req.Data.Value)
	if err != nil {
		return Failure(cmd, err)
	}
	name := payload.Command()
	d.observer.CommandResolved(ctx, name, name.RequiresAuth())

	if name.RequiresAuth() {
		proof := nonce.Proof{
			ClientIdentity: req.ClientIdentity,
			RawBody:        req.RawBody,
			Hash:           req.Hash,
		}
		if req.ClientNonce.Present {
			cnonce := req.ClientNonce.Value
			proof.ClientNonce = &cnonce
		}
		if err := d.auth.VerifyProof(ctx, proof); err != nil {
			return Failure(cmd, err)
		}
	}

	switch p := payload.(type) {
	case NoncePayload:
		challenge, err := d.auth.IssueChallenge(ctx, req.ClientIdentity)
		if err != nil {
			return Failure(cmd, err)
		}
		return Success(cmd, NonceResponse{Nonce: challenge})
	case ScoresPayload:
		list, err := d.scores.TopScores(ctx, p.ScoreNumber)
		if err != nil {
			return Failure(cmd, err)
		}
		return Success(cmd, list)
	case AddScorePayload:
		if p.Score == nil {
			return Failure(cmd, apperrors.New(apperrors.CodeMissingScore, "score is missing"))
		}
		if p.Username == nil {
			return Failure(cmd, apperrors.New(apperrors.CodeMissingUsername, "username is missing"))
		}
		if err := d.scores.InsertScore(ctx, *p.Username, *p.Score); err != nil {
			return Failure(cmd, err)
		}
		return Success(cmd, nil)
	default:
		return Failure(cmd, apperrors.New(apperrors.CodeInvalidCommand, "unhandled command "+cmd))
	}
}

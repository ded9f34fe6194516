// Package nonce issues single-use challenges and verifies the proofs clients
// compute over them.
//
// A proof is hex(SHA-256(challenge ++ clientNonce ++ rawBody ++ secret)).
// The parts are concatenated without delimiters so the digest matches what
// deployed game clients already compute byte for byte.
package nonce

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
	"github.com/louisbranch/leaderboard/internal/random"
	"github.com/louisbranch/leaderboard/internal/services/leaderboard/storage"
)

// ChallengeBytes is the amount of randomness behind each challenge.
const ChallengeBytes = 32

// DefaultSharedSecret is the secret compiled into existing game clients.
const DefaultSharedSecret = "1234567890"

// Proof is what a client presents on a protected command.
type Proof struct {
	ClientIdentity string
	// ClientNonce is nil when the client sent no cnonce header. A header
	// sent empty is still a nonce.
	ClientNonce    *string
	RawBody        []byte
	Hash           string
}

// Authenticator issues and consumes challenges held in a NonceStore.
type Authenticator struct {
	store  storage.NonceStore
	secret []byte
	source random.Source
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithRandomSource replaces crypto/rand as the challenge entropy source.
func WithRandomSource(src random.Source) Option {
	return func(a *Authenticator) {
		a.source = src
	}
}

// NewAuthenticator builds an Authenticator over store using secret as the
// pre-shared proof key.
func NewAuthenticator(store storage.NonceStore, secret string, opts ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("nonce store is required")
	}
	if secret == "" {
		return nil, errors.New("shared secret is required")
	}
	a := &Authenticator{store: store, secret: []byte(secret)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// IssueChallenge creates a fresh challenge for clientIdentity, replacing any
// challenge the client had not used yet.
func (a *Authenticator) IssueChallenge(ctx context.Context, clientIdentity string) (string, error) {
	raw, err := random.BytesFrom(a.source, ChallengeBytes)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "generate challenge", err)
	}
	sum := sha256.Sum256(raw)
	challenge := hex.EncodeToString(sum[:])

	if err := a.store.PutNonce(ctx, clientIdentity, challenge); err != nil {
		return "", apperrors.Wrap(apperrors.CodeDB, "store challenge", err)
	}
	return challenge, nil
}

// VerifyProof consumes the client's challenge and checks the proof against
// it. The challenge is deleted before the hash comparison, so a proof can
// never be accepted twice.
func (a *Authenticator) VerifyProof(ctx context.Context, proof Proof) error {
	if proof.ClientNonce == nil {
		return apperrors.New(apperrors.CodeInvalidNonce, "client nonce header is missing")
	}

	challenge, err := a.store.TakeNonce(ctx, proof.ClientIdentity)
	if errors.Is(err, storage.ErrNonceNotFound) {
		return apperrors.New(apperrors.CodeServerMissingNonce, "no challenge for "+proof.ClientIdentity)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDB, "take challenge", err)
	}

	expected := ComputeProof(challenge, *proof.ClientNonce, proof.RawBody, a.secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(proof.Hash)) != 1 {
		return apperrors.New(apperrors.CodeInvalidNonceOrHash, "proof does not match")
	}
	return nil
}

// ComputeProof returns the lowercase hex digest a client must send for the
// given challenge, client nonce, body and secret.
func ComputeProof(challenge, clientNonce string, rawBody, secret []byte) string {
	h := sha256.New()
	h.Write([]byte(challenge))
	h.Write([]byte(clientNonce))
	h.Write(rawBody)
	h.Write(secret)
	return hex.EncodeToString(h.Sum(nil))
}

// Package errors provides the coded error type shared by the leaderboard
// protocol layers. Codes are the literal strings the game client reads from
// the envelope's error field.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeNone marks a fully successful request.
	CodeNone Code = "none"

	// Malformed request errors
	CodeMissingCommand Code = "missing_command"
	CodeMissingData    Code = "missing_data"
	CodeInvalidJSON    Code = "invalid_json"
	CodeInvalidCommand Code = "invalid_command"

	// Authentication errors
	CodeInvalidNonce       Code = "invalid_nonce"
	CodeServerMissingNonce Code = "server_missing_nonce"
	CodeInvalidNonceOrHash Code = "invalid_nonce_or_hash"

	// Validation errors
	CodeMissingScore    Code = "missing_score"
	CodeMissingUsername Code = "missing_username"

	// Storage errors; the envelope appends the underlying message.
	CodeDBLogin Code = "db_login_error"
	CodeDB      Code = "db_error"

	// CodeInternal covers failures outside the store, such as the challenge
	// entropy source. No detail reaches the client.
	CodeInternal Code = "internal_error"
)

// Class groups codes by the stage of request handling that produced them.
type Class string

const (
	ClassNone       Class = "none"
	ClassRequest    Class = "request"
	ClassAuth       Class = "auth"
	ClassValidation Class = "validation"
	ClassStorage    Class = "storage"
	ClassInternal   Class = "internal"
)

// Class maps a code onto its error class.
func (c Code) Class() Class {
	switch c {
	case CodeNone:
		return ClassNone
	case CodeMissingCommand,
		CodeMissingData,
		CodeInvalidJSON,
		CodeInvalidCommand:
		return ClassRequest
	case CodeInvalidNonce,
		CodeServerMissingNonce,
		CodeInvalidNonceOrHash:
		return ClassAuth
	case CodeMissingScore,
		CodeMissingUsername:
		return ClassValidation
	case CodeDBLogin,
		CodeDB:
		return ClassStorage
	default:
		return ClassInternal
	}
}

// CarriesDetail reports whether the envelope should append the cause message.
func (c Code) CarriesDetail() bool {
	return c.Class() == ClassStorage
}

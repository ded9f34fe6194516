package command

import (
	apperrors "github.com/louisbranch/leaderboard/internal/platform/errors"
)

// Envelope is the JSON body of every reply.
type Envelope struct {
	Error string `json:"error"`
	// Command is nil only in the missing_command reply, which has no
	// command to echo.
	Command  *string `json:"command,omitempty"`
	Response any     `json:"response"`
}

type emptyResponse struct{}

// Success wraps response in a successful envelope for command.
func Success(command string, response any) Envelope {
	if response == nil {
		response = emptyResponse{}
	}
	return Envelope{Error: string(apperrors.CodeNone), Command: &command, Response: response}
}

// Failure renders err into an envelope for command.
func Failure(command string, err error) Envelope {
	return Envelope{Error: apperrors.EnvelopeCode(err), Command: &command, Response: emptyResponse{}}
}

// MissingCommand is the reply when the request names no command.
func MissingCommand() Envelope {
	return Envelope{Error: string(apperrors.CodeMissingCommand), Response: emptyResponse{}}
}

// OK reports whether the envelope describes a successful request.
func (e Envelope) OK() bool {
	return e.Error == string(apperrors.CodeNone)
}

// CommandName returns the echoed command, or "" when there is none.
func (e Envelope) CommandName() string {
	if e.Command == nil {
		return ""
	}
	return *e.Command
}

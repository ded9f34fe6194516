package command

import "context"

// Observer is notified at the three fixed points of request handling. It is
// the only place the dispatcher reports to logs or traces.
type Observer interface {
	// RequestReceived runs before any validation. The returned context is
	// used for the rest of the request.
	RequestReceived(ctx context.Context, req Request) context.Context
	// CommandResolved runs once the command and payload are known.
	CommandResolved(ctx context.Context, name Name, protected bool)
	// ResponseEmitted runs with the final envelope.
	ResponseEmitted(ctx context.Context, env Envelope)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RequestReceived(ctx context.Context, _ Request) context.Context { return ctx }
func (NopObserver) CommandResolved(context.Context, Name, bool) {}
func (NopObserver) ResponseEmitted(context.Context, Envelope) {}

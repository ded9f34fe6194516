// Package leaderboard groups the high-score service: the nonce
// authenticator, the score operations, the command dispatcher and the HTTP
// transport that fronts them.
//
// A request flows transport → dispatcher → authenticator (for protected
// commands) → score store, and always produces exactly one response
// envelope.
package leaderboard

// Package storage declares persistence contracts for the leaderboard.
//
// Both stores are the only shared state between requests; every
// cross-request guarantee (one challenge per client, single use) is enforced
// by the atomicity of these operations.
package storage

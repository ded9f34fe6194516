// Package sqlite provides the leaderboard persistence adapter backed by SQLite.
package sqlite

// Package timeouts defines shared timeout constants used by the leaderboard
// servers and probes.
package timeouts

import "time"

// HealthProbe caps how long the -healthcheck probe waits for SERVING.
const HealthProbe = 3 * time.Second

// HealthPing caps a single store ping made for the health status.
const HealthPing = time.Second

// HealthInterval is how often the health server re-pings the store.
const HealthInterval = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

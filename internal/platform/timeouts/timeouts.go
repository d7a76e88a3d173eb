// Package timeouts defines shared timeout constants used across lcnotes.
package timeouts

import "time"

// SendEmail caps one call to the configured email transport.
const SendEmail = 10 * time.Second

// RecordDelivery caps the best-effort delivery log write after a send.
const RecordDelivery = 2 * time.Second

// TraceFlush caps the span export after each Lambda invocation.
const TraceFlush = 2 * time.Second

// HealthCheck caps one gRPC health check.
const HealthCheck = time.Second

// Shutdown limits graceful stops of servers and the tracer provider.
const Shutdown = 5 * time.Second

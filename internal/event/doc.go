// Package event defines the shared data types that flow through the
// ingestion pipeline.
//
// Conventions:
//   - Index: uint64 per-room sequence number, starts at 1
//   - Timestamp: local receipt time (time.Time), not server time
//   - Payloads: decoded JSON objects, never mutated after decode
package event

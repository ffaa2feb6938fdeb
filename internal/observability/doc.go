// Package observability provides structured logging and metrics
// for the ingestion service.
//
// This package implements:
//   - zap logger construction from configured level and format
//   - Prometheus collectors for provider calls, cache lookups and fallbacks
//
// Every governed provider call reports through Metrics.
package observability

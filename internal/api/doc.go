// Package api implements the HTTP REST API for the OBEGRÄNSAD integration.
//
// This package provides:
//   - Pairing flow endpoints (start, submit, abort)
//   - Config entry listing and removal
//   - Prometheus metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Optional JWT bearer authentication and per-client rate limiting
//
// # Pairing
//
// A client starts a flow with POST /api/v1/flows and receives the form to
// render. It then submits {"host": "..."} to POST /api/v1/flows/{id} until
// the result type is "abort" or "create_entry". The server only describes
// forms; rendering them is up to the client.
//
// # Security
//
// When security.jwt.secret is set, every route except /health and /metrics
// requires an HS256 bearer token. Flow submissions trigger a network probe,
// so they are rate limited per client IP when security.rate_limit is enabled.
package api

// Package dashboard exposes fleet pipelines and status aggregation to the
// dev-ops dashboard over HTTP.
//
// It renders every operation as a uniform {output, success} envelope with
// permissive CORS headers, validates repository identifiers before any
// process spawns, and streams command and pass events to dashboard clients
// over a websocket hub.
package dashboard

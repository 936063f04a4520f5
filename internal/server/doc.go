// Package server exposes the guardian over HTTP: the intent endpoint,
// the specialized flow endpoints, adapter passthroughs, memory queries,
// and a WebSocket audit stream. Every route except health requires an
// API key, checked before any core logic runs.
package server

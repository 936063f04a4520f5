// Package api defines the shared data model for the guardian: intents,
// action plans, flow states, audit entries, and the wire messages exchanged
// with callers and the external model-management services.
package api

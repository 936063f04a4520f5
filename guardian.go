// Package guardian identifies the service for health reporting and
// logging.
package guardian

const (
	// Name is the service name reported by health endpoints
	Name = "guardian"

	// Version is the service version reported by health endpoints
	Version = "1.0.0"
)

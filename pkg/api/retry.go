package api

type (
	// RetryConfig controls retry behavior around adapter calls
	RetryConfig struct {
		MaxRetries  int    `json:"max_retries"`
		InitBackoff int64  `json:"init_backoff_ms"`
		MaxBackoff  int64  `json:"max_backoff_ms"`
		BackoffType string `json:"backoff_type"`
	}
)

const (
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

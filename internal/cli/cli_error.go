package cli

// CLIError is a structured error used for consistent NDJSON/text emission.
type CLIError struct {
	Code    string
	Message string
	Hint    string
}

func (e *CLIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Error codes
const (
	codeInvalidConfig = "INVALID_CONFIG"
	codeInvalidFilter = "INVALID_FILTER"
	codeInvalidFlag   = "INVALID_FLAG"
	codeLoadFailed    = "LOAD_FAILED"
	codeInterrupted   = "INTERRUPTED"
	codeFallback      = "FALLBACK_ERROR"
	codeTransform     = "TRANSFORM_FAILED"
	codeReadFailed    = "READ_FAILED"
	codeMetricsServer = "METRICS_SERVER"
	codeConfigWatch   = "CONFIG_WATCH"
	codeWriteFailed   = "WRITE_FAILED"
)

// Package result provides the envelope returned by every resilient call.
// Callers inspect Success before touching Data; failures carry a message in Error
// and structured hints (retries, circuit state) in Meta.
package result

// Meta keys written by the resilience layer.
const (
	MetaRetries            = "retries"
	MetaCircuitOpen        = "circuit_open"
	MetaRetryAfterSeconds  = "retry_after_seconds"
	MetaCanceled           = "canceled"
	MetaConfigurationError = "configuration_error"
)

// Envelope is the uniform result of a resilient call.
//
// Invariant: Success implies Error == ""; a failed envelope always carries a
// non-empty Error.
type Envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Meta    map[string]any `json:"meta"`
}

// OK returns a successful envelope carrying data.
func OK(data map[string]any) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Meta:    map[string]any{},
	}
}

// Fail returns a failed envelope. An empty message is replaced with a generic one
// so the failure invariant holds.
func Fail(message string, meta map[string]any) Envelope {
	if message == "" {
		message = "unknown error"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return Envelope{
		Success: false,
		Error:   message,
		Meta:    meta,
	}
}

// FromError returns a failed envelope using err's message.
func FromError(err error, meta map[string]any) Envelope {
	if err == nil {
		return Fail("", meta)
	}
	return Fail(err.Error(), meta)
}

// WithMeta returns a copy of e with key set in Meta.
func (e Envelope) WithMeta(key string, value any) Envelope {
	meta := make(map[string]any, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

// Get returns a value from Data.
func (e Envelope) Get(key string) (any, bool) {
	if e.Data == nil {
		return nil, false
	}
	v, ok := e.Data[key]
	return v, ok
}

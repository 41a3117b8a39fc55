package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"opsglue/internal/handler/http/requestid"
	"opsglue/internal/observability/logging"
	"opsglue/internal/resilience"
	"opsglue/internal/resilience/circuitbreaker"
	"opsglue/internal/resilience/result"
	"opsglue/internal/resilience/retry"
	"opsglue/internal/resilience/stats"
)

// Health statuses reported by HealthCheck.
const (
	StatusOperational = "operational"
	StatusDegraded    = "degraded"
)

// maxErrorBody bounds how much of a non-2xx body ends up in an error message.
const maxErrorBody = 512

// Validator checks that a service is reachable and correctly configured.
// Returning an error that matches resilience.ErrConfiguration marks the failure
// as a configuration problem.
type Validator interface {
	ValidateConnection(ctx context.Context) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context) error

// ValidateConnection calls f(ctx).
func (f ValidatorFunc) ValidateConnection(ctx context.Context) error {
	return f(ctx)
}

// Metrics receives per-service measurements.
type Metrics interface {
	retry.MetricsRecorder
	SetCircuitState(service string, state circuitbreaker.State)
	RecordCircuitReset(service string)
}

// RequestOptions holds the optional parts of an outbound request.
type RequestOptions struct {
	// Params are appended to the URL query.
	Params url.Values

	// Headers are set on the request. They override defaults with the same name.
	Headers map[string]string

	// Body is JSON encoded unless it is already []byte, string or io.Reader.
	Body any

	// Policy overrides the service retry policy for this call.
	Policy *retry.Policy
}

// Health is the read-only operational snapshot of a service.
type Health struct {
	ServiceName    string                  `json:"service_name"`
	Status         string                  `json:"status"`
	CircuitBreaker circuitbreaker.Snapshot `json:"circuit_breaker"`
	Stats          HealthStats             `json:"stats"`
}

// HealthStats is the stats part of Health.
type HealthStats struct {
	RequestCount          int64      `json:"request_count"`
	ErrorCount            int64      `json:"error_count"`
	ErrorRate             float64    `json:"error_rate"`
	AverageResponseTimeMs float64    `json:"average_response_time_ms"`
	CreatedAt             time.Time  `json:"created_at"`
	LastUsedAt            *time.Time `json:"last_used_at"`
	LastError             string     `json:"last_error,omitempty"`
	LastErrorAt           *time.Time `json:"last_error_at,omitempty"`
}

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the service logger. The service name is added to every entry.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics reports attempts, calls and circuit state to m.
func WithMetrics(m Metrics) Option {
	return func(b *Base) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithValidator sets the connection validator used by Initialize.
func WithValidator(v Validator) Option {
	return func(b *Base) {
		b.validator = v
	}
}

// WithTransport replaces the pooled transport, typically with a test double.
func WithTransport(rt http.RoundTripper) Option {
	return func(b *Base) {
		b.baseTransport = rt
	}
}

// WithExecutorOptions passes options through to the retry executor.
func WithExecutorOptions(opts ...retry.ExecutorOption) Option {
	return func(b *Base) {
		b.execOpts = append(b.execOpts, opts...)
	}
}

// Base is the retrying, circuit-breaking HTTP client shared by every outbound
// integration. It owns a lazily created pooled transport, its stats and its
// breaker. Every call returns a result.Envelope.
type Base struct {
	name      string
	logger    *slog.Logger
	metrics   Metrics
	validator Validator
	exec      *retry.Executor
	execOpts  []retry.ExecutorOption

	mu            sync.Mutex
	baseTransport http.RoundTripper
	pool          *http.Transport
	client        *http.Client
}

// NewBase creates a service client with the given retry policy and breaker configuration.
func NewBase(name string, policy retry.Policy, breakerCfg circuitbreaker.Config, opts ...Option) *Base {
	b := &Base{
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.ForService(b.logger, name)

	breakerCfg.Name = name
	breakerCfg.OnStateChange = b.onStateChange

	execOpts := append([]retry.ExecutorOption{retry.WithLogger(b.logger)}, b.execOpts...)
	if b.metrics != nil {
		execOpts = append(execOpts, retry.WithMetrics(b.metrics))
		b.metrics.SetCircuitState(name, circuitbreaker.StateClosed)
	}

	b.exec = retry.NewExecutor(name, policy, circuitbreaker.New(breakerCfg), nil, execOpts...)
	return b
}

func (b *Base) onStateChange(name string, from, to circuitbreaker.State) {
	b.logger.Warn("circuit breaker state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if b.metrics != nil {
		b.metrics.SetCircuitState(name, to)
	}
}

// Name returns the service name.
func (b *Base) Name() string {
	return b.name
}

// Logger returns the service logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Breaker returns the service circuit breaker.
func (b *Base) Breaker() *circuitbreaker.Breaker {
	return b.exec.Breaker()
}

// Stats returns the service connection stats.
func (b *Base) Stats() *stats.ConnectionStats {
	return b.exec.Stats()
}

// SetValidator replaces the connection validator.
func (b *Base) SetValidator(v Validator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validator = v
}

// httpClient returns the pooled client, creating it on first use or after Close.
func (b *Base) httpClient() *http.Client {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		return b.client
	}

	rt := b.baseTransport
	if rt == nil {
		b.pool = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		}
		rt = b.pool
	}

	// Per-attempt deadlines come from the request context, so the client has no timeout.
	b.client = &http.Client{Transport: otelhttp.NewTransport(rt)}
	b.logger.Debug("http transport created")
	return b.client
}

// Initialize creates the transport and validates the connection.
func (b *Base) Initialize(ctx context.Context) result.Envelope {
	b.httpClient()

	b.mu.Lock()
	validator := b.validator
	b.mu.Unlock()

	var err error
	if validator == nil {
		err = resilience.NewConfigurationError("service %q has no connection validator", b.name)
	} else {
		err = validator.ValidateConnection(ctx)
	}

	if err != nil {
		b.logger.Error("service initialization failed", slog.Any("error", err))
		return failure(err)
	}

	b.logger.Info("service initialized")
	return result.OK(map[string]any{"service": b.name, "initialized": true})
}

// Close releases idle connections and drops the client. The next call recreates it.
func (b *Base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil {
		return nil
	}
	if b.pool != nil {
		b.pool.CloseIdleConnections()
		b.pool = nil
	}
	b.client = nil
	b.logger.Debug("http transport closed")
	return nil
}

// HealthCheck returns the operational snapshot of the service.
func (b *Base) HealthCheck() Health {
	now := b.exec.Now()
	cb := b.exec.Breaker().Snapshot(now)
	snap := b.exec.Stats().Snapshot()

	status := StatusOperational
	if cb.State != circuitbreaker.StateClosed.String() {
		status = StatusDegraded
	}

	hs := HealthStats{
		RequestCount:          snap.RequestCount,
		ErrorCount:            snap.ErrorCount,
		ErrorRate:             snap.ErrorRate(),
		AverageResponseTimeMs: snap.AverageResponseTimeMs,
		CreatedAt:             snap.CreatedAt,
		LastError:             snap.LastError,
	}
	if !snap.LastUsedAt.IsZero() {
		t := snap.LastUsedAt
		hs.LastUsedAt = &t
	}
	if !snap.LastErrorAt.IsZero() {
		t := snap.LastErrorAt
		hs.LastErrorAt = &t
	}

	return Health{
		ServiceName:    b.name,
		Status:         status,
		CircuitBreaker: cb,
		Stats:          hs,
	}
}

// ResetCircuitBreaker closes the breaker and clears its failure count.
func (b *Base) ResetCircuitBreaker() {
	b.exec.Breaker().Reset()
	if b.metrics != nil {
		b.metrics.RecordCircuitReset(b.name)
		b.metrics.SetCircuitState(b.name, circuitbreaker.StateClosed)
	}
	b.logger.Info("circuit breaker reset")
}

// Execute runs an arbitrary operation under the service's retry policy and breaker.
func (b *Base) Execute(ctx context.Context, op retry.Operation) result.Envelope {
	return b.exec.Execute(ctx, op)
}

// Get issues a GET request.
func (b *Base) Get(ctx context.Context, rawURL string, opts RequestOptions) result.Envelope {
	return b.Do(ctx, http.MethodGet, rawURL, opts)
}

// Post issues a POST request.
func (b *Base) Post(ctx context.Context, rawURL string, opts RequestOptions) result.Envelope {
	return b.Do(ctx, http.MethodPost, rawURL, opts)
}

// Put issues a PUT request.
func (b *Base) Put(ctx context.Context, rawURL string, opts RequestOptions) result.Envelope {
	return b.Do(ctx, http.MethodPut, rawURL, opts)
}

// Patch issues a PATCH request.
func (b *Base) Patch(ctx context.Context, rawURL string, opts RequestOptions) result.Envelope {
	return b.Do(ctx, http.MethodPatch, rawURL, opts)
}

// Delete issues a DELETE request.
func (b *Base) Delete(ctx context.Context, rawURL string, opts RequestOptions) result.Envelope {
	return b.Do(ctx, http.MethodDelete, rawURL, opts)
}

// Do issues a request with retries. The body is encoded once and replayed on each attempt.
func (b *Base) Do(ctx context.Context, method, rawURL string, opts RequestOptions) result.Envelope {
	target, err := buildURL(rawURL, opts.Params)
	if err != nil {
		return result.Fail(err.Error(), nil)
	}

	payload, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return result.Fail(err.Error(), nil)
	}

	op := func(ctx context.Context) (map[string]any, error) {
		return b.roundTrip(ctx, method, target, payload, contentType, opts.Headers)
	}

	if opts.Policy != nil {
		return b.exec.ExecuteWithPolicy(ctx, *opts.Policy, op)
	}
	return b.exec.Execute(ctx, op)
}

func (b *Base) roundTrip(ctx context.Context, method, target string, payload []byte, contentType string, headers map[string]string) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	requestid.Propagate(ctx, req.Header)

	resp, err := b.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	return decodeBody(resp.Header.Get("Content-Type"), raw)
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case io.Reader:
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}

// decodeBody turns a 2xx response into envelope data. JSON objects become the
// data map, other JSON values are wrapped under "data", and non-JSON bodies are
// returned under "text". A body without a content type is sniffed as JSON first.
func decodeBody(contentType string, raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	if contentType != "" && !isJSON(contentType) {
		return map[string]any{"text": string(raw)}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		if contentType == "" {
			return map[string]any{"text": string(raw)}, nil
		}
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{"data": v}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// failure converts err into an envelope, flagging configuration errors.
func failure(err error) result.Envelope {
	if errors.Is(err, resilience.ErrConfiguration) {
		return result.FromError(err, map[string]any{result.MetaConfigurationError: true})
	}
	return result.FromError(err, nil)
}

// IsConfigurationError reports whether an envelope failed because of configuration.
func IsConfigurationError(env result.Envelope) bool {
	v, _ := env.Meta[result.MetaConfigurationError].(bool)
	return v
}

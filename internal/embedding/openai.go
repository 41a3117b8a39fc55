package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"opsglue/internal/resilience"
	"opsglue/internal/resilience/retry"
)

// maxOpenAIBatch is the API's limit on inputs per request.
const maxOpenAIBatch = 2048

// OpenAIConfig configures OpenAIProvider.
type OpenAIConfig struct {
	APIKey string

	// Model defaults to text-embedding-3-small.
	Model string

	// BaseURL points at an OpenAI-compatible API. Empty uses the public endpoint.
	BaseURL string

	// Dimensions defaults to 1536. It is sent to the API for text-embedding-3 models.
	Dimensions int

	// RateLimit is the maximum number of requests per second. Default: 5
	RateLimit float64

	// MaxBatch is the most texts sent in one request; larger inputs are split.
	// Default: DefaultBatchSize, capped at 2048
	MaxBatch int

	// Policy governs retries of rate-limited and 5xx responses.
	Policy retry.Policy

	// HealthTTL is how long a health check result is reused. Default: 1m
	HealthTTL time.Duration

	// HealthTimeout bounds a single health check. Default: 10s
	HealthTimeout time.Duration

	// HTTPClient overrides the instrumented default client.
	HTTPClient *http.Client
}

// OpenAIProvider embeds texts with the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dims      int
	maxBatch  int
	limiter   *rate.Limiter
	policy    retry.Policy
	healthTTL time.Duration
	hasKey    bool

	healthTimeout time.Duration
	healthGroup   singleflight.Group

	mu          sync.Mutex
	lastHealth  *HealthStatus
	lastChecked time.Time
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultBatchSize
	}
	cfg.MaxBatch = min(cfg.MaxBatch, maxOpenAIBatch)
	if cfg.Policy == (retry.Policy{}) {
		cfg.Policy = retry.Policy{
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
			Timeout:    30 * time.Second,
		}
	}
	if cfg.HealthTTL <= 0 {
		cfg.HealthTTL = time.Minute
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 10 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	} else {
		clientCfg.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	burst := max(1, int(cfg.RateLimit))
	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		maxBatch:  cfg.MaxBatch,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		policy:    cfg.Policy,
		healthTTL: cfg.HealthTTL,
		hasKey:    cfg.APIKey != "",

		healthTimeout: cfg.HealthTimeout,
	}
}

// Name returns "openai:<model>".
func (o *OpenAIProvider) Name() string    { return "openai:" + o.model }
func (o *OpenAIProvider) Dimensions() int { return o.dims }

// GetEmbeddings requests one vector per text, MaxBatch texts per request. 429 and
// 5xx responses are retried with backoff; other API errors fail immediately.
func (o *OpenAIProvider) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if !o.hasKey {
		return nil, resilience.NewConfigurationError("openai api key is not set")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.maxBatch {
		end := min(start+o.maxBatch, len(texts))
		chunk, err := o.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		vectors = append(vectors, chunk...)
	}
	return vectors, nil
}

func (o *OpenAIProvider) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	}
	if strings.HasPrefix(o.model, "text-embedding-3") {
		req.Dimensions = o.dims
	}

	var vectors [][]float32
	err := retry.WithBackoff(ctx, o.policy, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, o.policy.Timeout)
		defer cancel()

		resp, err := o.client.CreateEmbeddings(attemptCtx, req)
		if err != nil {
			return translateError(err)
		}

		out, err := o.collect(resp, len(texts))
		if err != nil {
			return err
		}
		vectors = out
		return nil
	})
	return vectors, err
}

// collect orders the response by index and checks its shape.
func (o *OpenAIProvider) collect(resp openai.EmbeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("expected %d embeddings, got %d", want, len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, want)
	for i, d := range data {
		if len(d.Embedding) != o.dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", d.Index, len(d.Embedding), o.dims)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// HealthCheck embeds a short probe text. Results are cached for HealthTTL.
// Concurrent callers share one in-flight check, which runs detached from the
// caller's cancellation and is bounded by HealthTimeout, so a caller giving up
// never caches an unhealthy result.
func (o *OpenAIProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	if status, ok := o.cachedHealth(); ok {
		return status, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := o.healthGroup.DoChan("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.healthTimeout)
		defer cancel()

		status := o.checkHealth(checkCtx)

		o.mu.Lock()
		o.lastHealth = status
		o.lastChecked = time.Now()
		o.mu.Unlock()
		return status, nil
	})

	select {
	case res := <-ch:
		cached := *res.Val.(*HealthStatus)
		return &cached, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *OpenAIProvider) cachedHealth() (*HealthStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lastHealth == nil || time.Since(o.lastChecked) >= o.healthTTL {
		return nil, false
	}
	cached := *o.lastHealth
	return &cached, true
}

func (o *OpenAIProvider) checkHealth(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Provider:  o.Name(),
		Details:   map[string]any{"model": o.model, "dimensions": o.dims},
		CheckedAt: time.Now(),
	}

	if !o.hasKey {
		status.Error = "openai api key is not set"
		return status
	}

	start := time.Now()
	_, err := o.GetEmbeddings(ctx, []string{"health check"})
	status.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		status.Error = err.Error()
		slog.Warn("openai embedding health check failed",
			slog.String("model", o.model),
			slog.Any("error", err))
		return status
	}
	status.Healthy = true
	return status
}

// translateError maps go-openai errors onto retry.HTTPError so that retry
// classification sees the status code.
func translateError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &retry.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &retry.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return err
}

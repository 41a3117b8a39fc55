package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"opsglue/internal/resilience"
	"opsglue/internal/resilience/circuitbreaker"
	"opsglue/internal/resilience/result"
	"opsglue/internal/resilience/retry"
)

// DefaultAuthHeader carries the bearer token unless a service names another header.
const DefaultAuthHeader = "Authorization"

// APIConfig describes a token-authenticated JSON API.
type APIConfig struct {
	Name    string
	BaseURL string

	// APIKey is sent as a bearer token when Tokens is nil.
	APIKey string

	// Tokens overrides APIKey, e.g. with a JWTSigner.
	Tokens TokenSource

	// AuthHeader names the header carrying "Bearer <token>". Default: Authorization
	AuthHeader string

	// Headers are added to every request.
	Headers map[string]string

	Policy  retry.Policy
	Breaker circuitbreaker.Config
}

// API is a Base bound to one base URL and credential.
type API struct {
	*Base

	baseURL    string
	authHeader string
	tokens     TokenSource
	headers    map[string]string
}

// NewAPI creates an API client. Unless WithValidator is given, Initialize only
// checks that a credential is configured.
func NewAPI(cfg APIConfig, opts ...Option) *API {
	tokens := cfg.Tokens
	if tokens == nil && cfg.APIKey != "" {
		tokens = StaticToken(cfg.APIKey)
	}
	authHeader := cfg.AuthHeader
	if authHeader == "" {
		authHeader = DefaultAuthHeader
	}

	a := &API{
		Base:       NewBase(cfg.Name, cfg.Policy, cfg.Breaker, opts...),
		baseURL:    cfg.BaseURL,
		authHeader: authHeader,
		tokens:     tokens,
		headers:    cfg.Headers,
	}

	a.mu.Lock()
	if a.validator == nil {
		a.validator = ValidatorFunc(a.validateCredentials)
	}
	a.mu.Unlock()

	return a
}

// BaseURL returns the API base URL.
func (a *API) BaseURL() string {
	return a.baseURL
}

// AuthHeader returns the name of the header carrying the token.
func (a *API) AuthHeader() string {
	return a.authHeader
}

func (a *API) validateCredentials(ctx context.Context) error {
	if a.tokens == nil {
		return resilience.NewConfigurationError("API key not configured for %s", a.name)
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return resilience.NewConfigurationError("API key not configured for %s", a.name)
	}
	return nil
}

// DefaultHeaders returns the JSON content headers, the configured static headers
// and the auth header when a token is available.
func (a *API) DefaultHeaders(ctx context.Context) (map[string]string, error) {
	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	for k, v := range a.headers {
		headers[k] = v
	}

	if a.tokens == nil {
		return headers, nil
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		headers[a.authHeader] = "Bearer " + token
	}
	return headers, nil
}

// MakeAPIRequest sends method to the endpoint under the base URL. Caller headers
// override the defaults.
func (a *API) MakeAPIRequest(ctx context.Context, method, endpoint string, opts RequestOptions) result.Envelope {
	method = strings.ToUpper(strings.TrimSpace(method))
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return result.Fail(fmt.Sprintf("unsupported HTTP method: %s", method), nil)
	}

	headers, err := a.DefaultHeaders(ctx)
	if err != nil {
		return failure(err)
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	opts.Headers = headers

	return a.Do(ctx, method, JoinURL(a.baseURL, endpoint), opts)
}

// JoinURL joins a base URL and an endpoint with exactly one slash between them.
func JoinURL(base, endpoint string) string {
	base = strings.TrimRight(base, "/")
	endpoint = strings.TrimLeft(endpoint, "/")
	if endpoint == "" {
		return base
	}
	return base + "/" + endpoint
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "opsglue/pkg/config"
)

// Auth types for ServiceConfig.Auth.Type.
const (
	AuthBearer = "bearer"
	AuthJWT    = "jwt"
)

// ServicesFile is the root of the YAML file named by SERVICES_CONFIG_PATH.
//
//	services:
//	  - name: notion
//	    base_url: https://api.notion.com/v1
//	    api_key_env: NOTION_API_KEY
//	    headers:
//	      Notion-Version: "2022-06-28"
//	    resilience:
//	      max_retries: 5
//	      base_retry_delay: 0.5
//	      circuit_breaker_enabled: true
type ServicesFile struct {
	Services []ServiceConfig `yaml:"services"`
}

// ServiceConfig describes one outbound integration.
type ServiceConfig struct {
	Name       string              `yaml:"name"`
	BaseURL    string              `yaml:"base_url"`
	APIKeyEnv  string              `yaml:"api_key_env"`
	AuthHeader string              `yaml:"auth_header"`
	Auth       AuthConfig          `yaml:"auth"`
	Headers    map[string]string   `yaml:"headers"`
	Resilience ResilienceOverrides `yaml:"resilience"`
}

// AuthConfig selects how the bearer token is produced.
type AuthConfig struct {
	// Type is "bearer" (api key as-is, the default) or "jwt" (HS256 signed tokens)
	Type      string `yaml:"type"`
	SecretEnv string `yaml:"secret_env"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
	Subject   string `yaml:"subject"`
	TTL       string `yaml:"ttl"`
}

// ResilienceOverrides replaces individual fields of the process defaults.
// Durations accept Go duration strings or bare seconds.
type ResilienceOverrides struct {
	MaxRetries            *int    `yaml:"max_retries"`
	BaseRetryDelay        *string `yaml:"base_retry_delay"`
	MaxRetryDelay         *string `yaml:"max_retry_delay"`
	Timeout               *string `yaml:"timeout"`
	CircuitBreakerEnabled *bool   `yaml:"circuit_breaker_enabled"`
	FailureThreshold      *int    `yaml:"failure_threshold"`
	RecoveryTimeout       *string `yaml:"recovery_timeout"`
}

// LoadServicesConfig reads and validates the services file. An empty path yields
// no services.
func LoadServicesConfig(path string) ([]ServiceConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services config file: %w", err)
	}

	var file ServicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services config YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Services))
	for i, svc := range file.Services {
		if err := svc.Validate(); err != nil {
			return nil, fmt.Errorf("services[%d]: %w", i, err)
		}
		if seen[svc.Name] {
			return nil, fmt.Errorf("services[%d]: duplicate service name %q", i, svc.Name)
		}
		seen[svc.Name] = true
	}

	return file.Services, nil
}

// Validate checks the static fields of a service entry.
func (s ServiceConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("service %q: base_url is required", s.Name)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("service %q: base_url %q is not an absolute URL", s.Name, s.BaseURL)
	}

	switch s.Auth.Type {
	case "", AuthBearer:
	case AuthJWT:
		if s.Auth.SecretEnv == "" {
			return fmt.Errorf("service %q: auth.secret_env is required for jwt auth", s.Name)
		}
		if s.Auth.TTL != "" {
			if _, err := pkgconfig.ParseSeconds(s.Auth.TTL); err != nil {
				return fmt.Errorf("service %q: auth.ttl: %w", s.Name, err)
			}
		}
	default:
		return fmt.Errorf("service %q: unknown auth type %q", s.Name, s.Auth.Type)
	}

	return nil
}

// APIKey reads the service key from the environment variable named by APIKeyEnv.
func (s ServiceConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// JWTSecret reads the signing secret named by Auth.SecretEnv.
func (s ServiceConfig) JWTSecret() string {
	if s.Auth.SecretEnv == "" {
		return ""
	}
	return os.Getenv(s.Auth.SecretEnv)
}

// JWTTTL returns the configured token lifetime, or def when unset.
func (s ServiceConfig) JWTTTL(def time.Duration) time.Duration {
	if s.Auth.TTL == "" {
		return def
	}
	d, err := pkgconfig.ParseSeconds(s.Auth.TTL)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ResolveResilience applies the service overrides on top of base and validates the result.
func (s ServiceConfig) ResolveResilience(base ResilienceConfig) (ResilienceConfig, error) {
	cfg := base
	o := s.Resilience

	if o.MaxRetries != nil {
		cfg.MaxRetries = *o.MaxRetries
	}
	if o.CircuitBreakerEnabled != nil {
		cfg.CircuitBreakerEnabled = *o.CircuitBreakerEnabled
	}
	if o.FailureThreshold != nil {
		cfg.FailureThreshold = *o.FailureThreshold
	}

	durations := []struct {
		name  string
		value *string
		dst   *time.Duration
	}{
		{"base_retry_delay", o.BaseRetryDelay, &cfg.BaseRetryDelay},
		{"max_retry_delay", o.MaxRetryDelay, &cfg.MaxRetryDelay},
		{"timeout", o.Timeout, &cfg.Timeout},
		{"recovery_timeout", o.RecoveryTimeout, &cfg.RecoveryTimeout},
	}
	for _, d := range durations {
		if d.value == nil {
			continue
		}
		parsed, err := pkgconfig.ParseSeconds(*d.value)
		if err != nil {
			return ResilienceConfig{}, fmt.Errorf("service %q: resilience.%s: %w", s.Name, d.name, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return ResilienceConfig{}, fmt.Errorf("service %q: %w", s.Name, err)
	}
	return cfg, nil
}

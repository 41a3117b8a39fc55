package service

import (
	"fmt"

	"opsglue/internal/config"
)

// NewSetFromConfig builds one API per configured service with base as the
// resilience defaults. opts apply to every service.
func NewSetFromConfig(base config.ResilienceConfig, services []config.ServiceConfig, opts ...Option) (*Set, error) {
	set := NewSet()
	for _, svc := range services {
		res, err := svc.ResolveResilience(base)
		if err != nil {
			_ = set.Close()
			return nil, err
		}

		api := NewAPI(APIConfig{
			Name:       svc.Name,
			BaseURL:    svc.BaseURL,
			APIKey:     svc.APIKey(),
			Tokens:     tokenSource(svc),
			AuthHeader: svc.AuthHeader,
			Headers:    svc.Headers,
			Policy:     res.Policy(),
			Breaker:    res.BreakerConfig(svc.Name),
		}, opts...)

		if err := set.Add(api); err != nil {
			_ = api.Close()
			_ = set.Close()
			return nil, fmt.Errorf("build services: %w", err)
		}
	}
	return set, nil
}

func tokenSource(svc config.ServiceConfig) TokenSource {
	if svc.Auth.Type != config.AuthJWT {
		return nil
	}
	return NewJWTSigner([]byte(svc.JWTSecret()), svc.Auth.Issuer, svc.Auth.Audience, svc.Auth.Subject, svc.JWTTTL(0))
}

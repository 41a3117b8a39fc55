// Package service provides the resilient HTTP clients used by every outbound
// integration.
//
// Base wraps a pooled, OpenTelemetry-instrumented HTTP client with the retry
// executor, a circuit breaker and connection stats. API binds a Base to one base
// URL and credential and adds default JSON and auth headers. Neither type ever
// returns a raw transport error: every call yields a result.Envelope.
//
//	notion := service.NewAPI(service.APIConfig{
//	    Name:    "notion",
//	    BaseURL: "https://api.notion.com/v1",
//	    APIKey:  os.Getenv("NOTION_API_KEY"),
//	    Headers: map[string]string{"Notion-Version": "2022-06-28"},
//	    Policy:  retry.DefaultPolicy(),
//	    Breaker: circuitbreaker.DefaultConfig("notion"),
//	})
//	defer notion.Close()
//
//	env := notion.MakeAPIRequest(ctx, http.MethodGet, "/users/me", service.RequestOptions{})
//	if !env.Success {
//	    return fmt.Errorf("notion: %s", env.Error)
//	}
package service

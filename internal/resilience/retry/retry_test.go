package retry

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    time.Second,
	}
}

func TestWithBackoff_Success(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return nil
	}

	err := WithBackoff(context.Background(), testPolicy(), fn)

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
		}
		return nil
	}

	err := WithBackoff(context.Background(), testPolicy(), fn)

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_MaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return syscall.ECONNREFUSED
	}

	err := WithBackoff(context.Background(), testPolicy(), fn)

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("expected wrapped ECONNREFUSED, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_NonRetryableError(t *testing.T) {
	attempts := 0
	badRequest := &HTTPError{StatusCode: 400, Message: "Bad Request"}
	fn := func() error {
		attempts++
		return badRequest
	}

	err := WithBackoff(context.Background(), testPolicy(), fn)

	if !errors.Is(err, badRequest) {
		t.Errorf("expected the non-retryable error back, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Timeout: time.Second}

	attempts := 0
	fn := func() error {
		attempts++
		cancel()
		return syscall.ECONNRESET
	}

	err := WithBackoff(ctx, policy, fn)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Timeout: time.Second}

	tests := []struct {
		name    string
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{name: "first retry, neutral jitter", attempt: 1, jitter: 1.0, want: time.Second},
		{name: "second retry doubles", attempt: 2, jitter: 1.0, want: 2 * time.Second},
		{name: "third retry", attempt: 3, jitter: 1.0, want: 4 * time.Second},
		{name: "low jitter", attempt: 2, jitter: 0.75, want: 1500 * time.Millisecond},
		{name: "capped before jitter", attempt: 8, jitter: 0.75, want: 7500 * time.Millisecond},
		{name: "capped after jitter", attempt: 4, jitter: 1.125, want: 9 * time.Second},
		{name: "never exceeds max", attempt: 8, jitter: 1.2, want: 10 * time.Second},
		{name: "jitter below band is clamped", attempt: 1, jitter: 0.1, want: 750 * time.Millisecond},
		{name: "attempt zero treated as first", attempt: 0, jitter: 1.0, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Backoff(tt.attempt, tt.jitter); got != tt.want {
				t.Errorf("Backoff(%d, %v) = %v, want %v", tt.attempt, tt.jitter, got, tt.want)
			}
		})
	}
}

func TestPolicy_BackoffBounds(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second, Timeout: time.Second}

	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.Backoff(attempt, Jitter())
			if d <= 0 {
				t.Fatalf("attempt %d: non-positive delay %v", attempt, d)
			}
			if d > p.MaxDelay {
				t.Fatalf("attempt %d: delay %v exceeds max %v", attempt, d, p.MaxDelay)
			}
		}
	}
}

func TestJitter_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		j := Jitter()
		if j < JitterMin || j >= JitterMax {
			t.Fatalf("jitter %v outside [%v, %v)", j, JitterMin, JitterMax)
		}
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled for zero delay on canceled ctx, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "nil error",
			err:       nil,
			retryable: false,
		},
		{
			name:      "context canceled",
			err:       context.Canceled,
			retryable: false,
		},
		{
			name:      "context deadline exceeded",
			err:       context.DeadlineExceeded,
			retryable: false,
		},
		{
			name:      "HTTP 500 error",
			err:       &HTTPError{StatusCode: 500, Message: "Internal Server Error"},
			retryable: true,
		},
		{
			name:      "HTTP 502 error",
			err:       &HTTPError{StatusCode: 502, Message: "Bad Gateway"},
			retryable: true,
		},
		{
			name:      "HTTP 503 error",
			err:       &HTTPError{StatusCode: 503, Message: "Service Unavailable"},
			retryable: true,
		},
		{
			name:      "HTTP 429 error",
			err:       &HTTPError{StatusCode: 429, Message: "Too Many Requests"},
			retryable: true,
		},
		{
			name:      "HTTP 408 error",
			err:       &HTTPError{StatusCode: 408, Message: "Request Timeout"},
			retryable: true,
		},
		{
			name:      "HTTP 400 error",
			err:       &HTTPError{StatusCode: 400, Message: "Bad Request"},
			retryable: false,
		},
		{
			name:      "HTTP 404 error",
			err:       &HTTPError{StatusCode: 404, Message: "Not Found"},
			retryable: false,
		},
		{
			name:      "ECONNREFUSED",
			err:       syscall.ECONNREFUSED,
			retryable: true,
		},
		{
			name:      "ECONNRESET",
			err:       syscall.ECONNRESET,
			retryable: true,
		},
		{
			name:      "ETIMEDOUT",
			err:       syscall.ETIMEDOUT,
			retryable: true,
		},
		{
			name:      "ENETUNREACH",
			err:       syscall.ENETUNREACH,
			retryable: true,
		},
		{
			name:      "generic error",
			err:       errors.New("some error"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsRetryable(tt.err)
			if result != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", result, tt.retryable)
			}
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	if got := err.Error(); got != "HTTP 503: Service Unavailable" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("expected MaxRetries=3, got %d", p.MaxRetries)
	}
	if p.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", p.BaseDelay)
	}
	if p.MaxDelay != 60*time.Second {
		t.Errorf("expected MaxDelay=60s, got %v", p.MaxDelay)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("expected Timeout=30s, got %v", p.Timeout)
	}
	if p.Attempts() != 4 {
		t.Errorf("expected 4 attempts, got %d", p.Attempts())
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy should validate, got %v", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Policy)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Policy) {}},
		{name: "zero retries", mutate: func(p *Policy) { p.MaxRetries = 0 }},
		{name: "negative retries", mutate: func(p *Policy) { p.MaxRetries = -1 }, wantErr: true},
		{name: "negative base delay", mutate: func(p *Policy) { p.BaseDelay = -time.Second }, wantErr: true},
		{name: "max below base", mutate: func(p *Policy) { p.MaxDelay = 500 * time.Millisecond }, wantErr: true},
		{name: "zero timeout", mutate: func(p *Policy) { p.Timeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

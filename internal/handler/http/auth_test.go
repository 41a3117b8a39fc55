package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testAdminSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, method jwt.SigningMethod, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func adminToken(t *testing.T) string {
	t.Helper()
	return signToken(t, jwt.SigningMethodHS256, testAdminSecret, jwt.MapClaims{
		"sub":  "oncall@example.com",
		"role": AdminRole,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func TestAdminAuth(t *testing.T) {
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name     string
		secret   []byte
		header   func(t *testing.T) string
		wantCode int
	}{
		{
			name:     "valid admin token",
			secret:   testAdminSecret,
			header:   func(t *testing.T) string { return "Bearer " + adminToken(t) },
			wantCode: http.StatusOK,
		},
		{
			name:     "no header",
			secret:   testAdminSecret,
			header:   func(*testing.T) string { return "" },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "not a bearer token",
			secret:   testAdminSecret,
			header:   func(t *testing.T) string { return "Basic " + adminToken(t) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "signed with another secret",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"),
					jwt.MapClaims{"sub": "x", "role": AdminRole, "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "unexpected algorithm",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS512, testAdminSecret,
					jwt.MapClaims{"sub": "x", "role": AdminRole, "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "expired",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testAdminSecret,
					jwt.MapClaims{"sub": "x", "role": AdminRole, "exp": time.Now().Add(-time.Minute).Unix()})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "no expiry",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testAdminSecret,
					jwt.MapClaims{"sub": "x", "role": AdminRole})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "missing subject",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testAdminSecret,
					jwt.MapClaims{"role": AdminRole, "exp": future})
			},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:   "viewer role",
			secret: testAdminSecret,
			header: func(t *testing.T) string {
				return "Bearer " + signToken(t, jwt.SigningMethodHS256, testAdminSecret,
					jwt.MapClaims{"sub": "x", "role": "viewer", "exp": future})
			},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "no secret configured",
			secret:   nil,
			header:   func(t *testing.T) string { return "Bearer " + adminToken(t) },
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var operator string
			h := AdminAuth(tt.secret, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				operator = OperatorFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/admin/services/slack/reset", nil)
			if v := tt.header(t); v != "" {
				req.Header.Set("Authorization", v)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode == http.StatusOK && operator != "oncall@example.com" {
				t.Errorf("operator = %q, want oncall@example.com", operator)
			}
		})
	}
}

package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"opsglue/internal/handler/http/respond"
)

// AdminRole is the role claim required on admin endpoints.
const AdminRole = "admin"

type ctxKey int

const ctxOperator ctxKey = iota

var (
	errMissingBearer = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid claims")
)

// OperatorFromContext returns the subject of the admin token that authorized the request.
func OperatorFromContext(ctx context.Context) string {
	op, _ := ctx.Value(ctxOperator).(string)
	return op
}

// AdminAuth returns middleware that requires an HS256 bearer token signed with
// secret and carrying sub and role=admin claims. An empty secret rejects every
// request.
func AdminAuth(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				logger.Warn("admin request rejected, no admin secret configured",
					slog.String("path", r.URL.Path))
				respond.Error(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}

			sub, role, err := validateAdminToken(r.Header.Get("Authorization"), secret)
			if err != nil {
				logger.Warn("admin request rejected",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				respond.Error(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			if role != AdminRole {
				logger.Warn("admin request forbidden",
					slog.String("path", r.URL.Path),
					slog.String("sub", sub),
					slog.String("role", role))
				respond.Error(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxOperator, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateAdminToken(authz string, secret []byte) (string, string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", "", errMissingBearer
	}

	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(strings.TrimPrefix(authz, prefix), claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return "", "", errInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", "", errInvalidClaims
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", "", errInvalidClaims
	}
	return sub, role, nil
}

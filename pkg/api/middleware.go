package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// AdminAudience is the aud claim required on operator bearer tokens.
const AdminAudience = "blulok-cloud-admin"

// TokenVerifier verifies operator bearer tokens.
type TokenVerifier interface {
	Verify(token, expectedAudience string) (map[string]interface{}, error)
}

// serviceVerifier adapts signing.Service to TokenVerifier.
type serviceVerifier struct {
	signer *signing.Service
}

func (v serviceVerifier) Verify(token, expectedAudience string) (map[string]interface{}, error) {
	claims, err := v.signer.Verify(token, expectedAudience)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// operatorAuth requires a Bearer token signed by the operator key with the
// admin audience. Health probes bypass this middleware entirely.
func operatorAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				errorResponse(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				errorResponse(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := verifier.Verify(token, AdminAudience)
			if err != nil {
				errorResponse(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := r.Context()
			if sub, ok := claims["sub"].(string); ok {
				ctx = withActor(ctx, sub)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey string

const actorContextKey contextKey = "actor"

func withActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorContextKey, actorID)
}

// ActorID returns the authenticated operator subject from the request
// context, or empty when unauthenticated.
func ActorID(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey).(string)
	return actor
}

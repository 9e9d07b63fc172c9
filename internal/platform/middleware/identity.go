package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"patrol/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the subject it
// identifies. Implemented by internal/jwttoken.
type TokenValidator interface {
	ValidateToken(tokenString string) (subject string, err error)
}

// Identity extracts the actor from an optional bearer token for
// CreatedBy/UpdatedBy attribution. Authorization enforcement is the caller's
// responsibility; a missing or unparseable token leaves the request anonymous
// rather than rejecting it.
func Identity(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "ignoring invalid bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			ctx := requestcontext.WithActorID(r.Context(), subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

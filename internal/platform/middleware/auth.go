package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "twinsale/pkg/domain"
	"twinsale/pkg/requestcontext"
)

// IdentityResolver turns a bearer token into a caller identity. The real
// implementation validates a JWT issued by the auth collaborator; tests plug
// in a stub.
type IdentityResolver interface {
	Resolve(token string) (id.UserID, error)
}

// JWTResolver validates HS256 tokens whose subject is the user ID.
type JWTResolver struct {
	signingKey []byte
}

func NewJWTResolver(signingKey string) *JWTResolver {
	return &JWTResolver{signingKey: []byte(signingKey)}
}

func (r *JWTResolver) Resolve(tokenString string) (id.UserID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return id.UserID{}, fmt.Errorf("parse token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return id.UserID{}, fmt.Errorf("token subject: %w", err)
	}
	userID, err := id.ParseUserID(sub)
	if err != nil {
		return id.UserID{}, fmt.Errorf("token subject: %w", err)
	}
	return userID, nil
}

// RequireAuth rejects requests without a resolvable caller identity. No
// anonymous mutation is permitted on any domain operation; handlers read the
// identity from context, never from request bodies.
func RequireAuth(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			userID, err := resolver.Resolve(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}

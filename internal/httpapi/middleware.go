package httpapi

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"habit-tracker/internal/auth"
)

// authMiddleware accepts requests carrying a valid bearer token and makes
// sure the token's user exists, so background jobs see every API user.
func (a *API) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.TokenFromRequest(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing token")
			return
		}
		userID, err := a.Auth.ParseToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}
		if _, err := a.Users.Ensure(r.Context(), userID); err != nil {
			writeServiceError(w, err, "load user")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

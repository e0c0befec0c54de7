package adminapi

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taskmesh/coordinator/internal/config"
)

// claims is the JWT payload accepted by the admin API's bearer auth.
type claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// auth returns a middleware enforcing a bearer JWT on every request when
// cfg.Enabled is true. Disabled auth is a no-op, so the admin surface is
// open by default the way the coordinator's TCP protocol always is.
func auth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if authHeader == "" || tokenString == authHeader {
				http.Error(w, "authorization header required", http.StatusUnauthorized)
				return
			}

			c := &claims{}
			token, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
				return []byte(cfg.JWTSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

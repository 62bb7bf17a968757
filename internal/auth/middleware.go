package auth

import (
	"net/http"
	"strings"
)

// ExtractToken pulls a credential token from the upgrade request, either a
// ?token= query parameter or a Bearer header. Connections without one stay
// unauthenticated until an AUTHENTICATE message arrives.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	return ""
}

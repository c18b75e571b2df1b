package auth

import (
	"net/http"
	"strings"
)

// ExtractAccessToken finds the session token on a request. Browsers cannot
// set headers on websocket upgrades, so the token query parameter is the
// last fallback.
func ExtractAccessToken(r *http.Request) string {
	// 1️⃣ Cookie (preferred)
	if cookie, err := r.Cookie("access_token"); err == nil {
		if cookie.Value != "" {
			return cookie.Value
		}
	}

	// 2️⃣ Authorization header
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 3️⃣ Query parameter (websocket handshake)
	return r.URL.Query().Get("token")
}

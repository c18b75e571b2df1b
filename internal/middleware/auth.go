package middleware

import (
	"net/http"

	"restohub-be/internal/auth"
	"restohub-be/internal/logger"
	"restohub-be/internal/utils"

	"go.uber.org/zap"
)

// AuthMiddleware resolves the verified caller from the session token. The
// restaurant id used by every handler comes from here and nowhere else.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				utils.WriteJSONError(w, "missing token", http.StatusUnauthorized)
				return
			}

			principal, err := auth.ParseToken(tokenStr, secret)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("token rejected", zap.Error(err))
				utils.WriteJSONError(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := utils.SetPrincipalContext(r.Context(), principal)
			ctx = logger.WithRestaurantID(ctx, principal.RestaurantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := make(map[auth.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := utils.GetPrincipalFromContext(r.Context())
			if !ok {
				utils.WriteJSONError(w, "missing token", http.StatusUnauthorized)
				return
			}
			if !allowed[p.Role] {
				utils.WriteJSONError(w, "access denied: insufficient permission", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

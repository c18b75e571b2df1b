package utils

import (
	"context"

	"restohub-be/internal/auth"
)

// SetPrincipalContext stores the verified caller (called by middleware).
func SetPrincipalContext(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipalFromContext retrieves the verified caller safely.
func GetPrincipalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}

// GetRestaurantIDFromContext returns the caller's tenant, 0 when anonymous.
func GetRestaurantIDFromContext(ctx context.Context) int64 {
	if p, ok := GetPrincipalFromContext(ctx); ok {
		return p.RestaurantID
	}
	return 0
}

package product

import "github.com/shopspring/decimal"

// Product is the catalog entry an order line is priced from.
type Product struct {
	ID                 int64           `json:"id"`
	RestaurantID       int64           `json:"restaurantId"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Category           *string         `json:"category,omitempty"`
	RequiresProduction bool            `json:"requiresProduction"`
	Stock              int             `json:"stock"`
}

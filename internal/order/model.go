package order

import (
	"time"

	"restohub-be/internal/product"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusOpen       OrderStatus = "open"
	StatusInProgress OrderStatus = "in_progress"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
)

// MaxQuantity caps a single product line.
const MaxQuantity = 10000

type Order struct {
	ID           int64           `json:"id"`
	RestaurantID int64           `json:"restaurantId"`
	TableID      *int64          `json:"tableId"`
	WaiterID     *int64          `json:"waiterId"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Items        []*OrderItem    `json:"items"`
}

type OrderItem struct {
	ID           int64            `json:"id"`
	RestaurantID int64            `json:"restaurantId"`
	OrderID      int64            `json:"orderId"`
	ProductID    *int64           `json:"productId"`
	Quantity     int              `json:"quantity"`
	Price        decimal.Decimal  `json:"price"`
	Status       ItemStatus       `json:"status"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Product      *product.Product `json:"product,omitempty"`
}

// Subtotal is price * quantity at two fractional digits.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// ItemStatuses lists the statuses of every item, in order.
func (o *Order) ItemStatuses() []ItemStatus {
	out := make([]ItemStatus, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, it.Status)
	}
	return out
}

// ProductLine is one requested product on create/add. Price and
// RequiresProduction are accepted for wire compatibility; the catalog wins.
type ProductLine struct {
	ID                 int64            `json:"id" validate:"required,gt=0"`
	Quantity           int              `json:"quantity" validate:"gte=0,lte=10000"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	RequiresProduction *bool            `json:"requiresProduction,omitempty"`
}

type CreateOrderInput struct {
	TableID  *int64        `json:"tableId"`
	WaiterID *int64        `json:"waiterId"`
	Products []ProductLine `json:"products" validate:"dive"`
}

type AddItemsInput struct {
	Products []ProductLine `json:"products" validate:"required,min=1,dive"`
}

// OptionalID distinguishes an absent field from an explicit null.
type OptionalID struct {
	Set   bool
	Value *int64
}

type Patch struct {
	Status   *OrderStatus
	TableID  OptionalID
	WaiterID OptionalID
	Version  *int64
}

func (p Patch) Empty() bool {
	return p.Status == nil && !p.TableID.Set && !p.WaiterID.Set
}

type ItemStatusUpdate struct {
	Status  ItemStatus `json:"status" validate:"required"`
	Version *int64     `json:"version,omitempty"`
}

type ListFilter struct {
	Statuses []OrderStatus
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restohub-be/internal/auth"
	"restohub-be/internal/order"
	"restohub-be/internal/realtime"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-secret"

// --- Mocks ---

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) ListOrders(ctx context.Context, restaurantID int64, filter order.ListFilter) ([]*order.Order, error) {
	args := m.Called(ctx, restaurantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, restaurantID, orderID int64) (*order.Order, error) {
	args := m.Called(ctx, restaurantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, restaurantID int64, input order.CreateOrderInput) (*order.Order, error) {
	args := m.Called(ctx, restaurantID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) AddItems(ctx context.Context, restaurantID, orderID int64, products []order.ProductLine) (*order.Order, error) {
	args := m.Called(ctx, restaurantID, orderID, products)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateItemStatus(ctx context.Context, restaurantID, itemID int64, update order.ItemStatusUpdate) (*order.OrderItem, error) {
	args := m.Called(ctx, restaurantID, itemID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.OrderItem), args.Error(1)
}

func (m *MockOrderService) UpdateOrder(ctx context.Context, restaurantID, orderID int64, patch order.Patch) (*order.Order, error) {
	args := m.Called(ctx, restaurantID, orderID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, restaurantID, orderID int64) error {
	return m.Called(ctx, restaurantID, orderID).Error(0)
}

type MockKitchenService struct {
	mock.Mock
}

func (m *MockKitchenService) GetQueue(ctx context.Context, restaurantID int64) ([]*order.Order, error) {
	args := m.Called(ctx, restaurantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

// --- Helpers ---

func token(t *testing.T, restaurantID int64, role auth.Role) string {
	t.Helper()
	claims := auth.Claims{
		UserID:       9,
		RestaurantID: restaurantID,
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

type fixture struct {
	router  http.Handler
	orders  *MockOrderService
	kitchen *MockKitchenService
}

func newFixture() *fixture {
	f := &fixture{orders: new(MockOrderService), kitchen: new(MockKitchenService)}
	f.router = NewRouter(RouterDeps{
		Orders:     f.orders,
		Kitchen:    f.kitchen,
		Hub:        realtime.NewHub(),
		JWTSecret:  testSecret,
		CORSOrigin: "http://localhost:3000",
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, restaurantID int64, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, restaurantID, role))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sampleOrder() *order.Order {
	pid := int64(1)
	return &order.Order{
		ID:           100,
		RestaurantID: 1,
		Status:       order.StatusOpen,
		TotalAmount:  decimal.RequireFromString("25.98"),
		Items: []*order.OrderItem{{
			ID:        1000,
			OrderID:   100,
			ProductID: &pid,
			Quantity:  2,
			Price:     decimal.RequireFromString("12.99"),
			Status:    order.ItemPending,
		}},
	}
}

// --- Tests ---

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/health", "", 0, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["realtimeClients"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthAndRoles(t *testing.T) {
	f := newFixture()

	t.Run("Missing token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/orders", "", 0, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Waiter cannot list all orders", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/orders", "", 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Chef cannot create orders", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/orders", `{"products":[]}`, 1, auth.RoleChef)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Waiter cannot read kitchen queue", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/kitchen/queue", "", 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("Waiter cannot delete", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/orders/1", "", 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	f.orders.AssertNotCalled(t, "ListOrders", mock.Anything, mock.Anything, mock.Anything)
	f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderHandler_List(t *testing.T) {
	t.Run("Status filter", func(t *testing.T) {
		f := newFixture()
		filter := order.ListFilter{Statuses: []order.OrderStatus{order.StatusOpen, order.StatusInProgress}}
		f.orders.On("ListOrders", mock.Anything, int64(3), filter).Return([]*order.Order{sampleOrder()}, nil)

		rec := f.do(t, http.MethodGet, "/orders?status=open,in_progress", "", 3, auth.RoleManager)

		assert.Equal(t, http.StatusOK, rec.Code)
		var out []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		assert.Equal(t, "25.98", out[0]["totalAmount"])
		f.orders.AssertExpectations(t)
	})

	t.Run("Storage error hides details", func(t *testing.T) {
		f := newFixture()
		f.orders.On("ListOrders", mock.Anything, int64(1), order.ListFilter{}).
			Return(nil, &order.Error{Kind: order.KindStorage, Op: "list orders", Err: errors.New("pq: connection refused")})

		rec := f.do(t, http.MethodGet, "/orders", "", 1, auth.RoleAdmin)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "internal server error", body["error"])
		assert.Equal(t, float64(500), body["code"])
	})
}

func TestOrderHandler_Get(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		f.orders.On("GetOrder", mock.Anything, int64(1), int64(100)).Return(sampleOrder(), nil)

		rec := f.do(t, http.MethodGet, "/orders/100", "", 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(100), decodeBody(t, rec)["id"])
	})

	t.Run("Invalid id", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodGet, "/orders/abc", "", 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestOrderHandler_Create(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		f := newFixture()
		f.orders.On("CreateOrder", mock.Anything, int64(1), mock.MatchedBy(func(in order.CreateOrderInput) bool {
			return len(in.Products) == 1 && in.Products[0].ID == 1 && in.Products[0].Quantity == 2 && in.TableID == nil
		})).Return(sampleOrder(), nil)

		rec := f.do(t, http.MethodPost, "/orders",
			`{"products":[{"id":1,"quantity":2,"price":12.99,"requiresProduction":true}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "open", body["status"])
		items := body["items"].([]interface{})
		require.Len(t, items, 1)
		assert.Equal(t, "pending", items[0].(map[string]interface{})["status"])
		assert.Equal(t, float64(2), items[0].(map[string]interface{})["quantity"])
	})

	t.Run("Negative quantity rejected before service", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/orders", `{"products":[{"id":1,"quantity":-1}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Oversized quantity rejected before service", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/orders", `{"products":[{"id":1,"quantity":2147483648}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)

		rec = f.do(t, http.MethodPost, "/orders", `{"products":[{"id":1,"quantity":10001}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.orders.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Malformed body", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/orders", `{"products":`, 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Foreign product", func(t *testing.T) {
		f := newFixture()
		f.orders.On("CreateOrder", mock.Anything, int64(1), mock.Anything).
			Return(nil, &order.Error{Kind: order.KindNotFound, Op: "create order", Err: order.ErrProductNotFound})

		rec := f.do(t, http.MethodPost, "/orders", `{"products":[{"id":42}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "product not found", decodeBody(t, rec)["error"])
	})
}

func TestOrderHandler_AddItems(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture()
		o := sampleOrder()
		o.Status = order.StatusInProgress
		f.orders.On("AddItems", mock.Anything, int64(1), int64(100), []order.ProductLine{{ID: 2, Quantity: 1}}).Return(o, nil)

		rec := f.do(t, http.MethodPost, "/orders/100/items", `{"products":[{"id":2,"quantity":1}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "Items added successfully", body["message"])
		assert.Equal(t, "in_progress", body["order"].(map[string]interface{})["status"])
	})

	t.Run("Empty products", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPost, "/orders/100/items", `{"products":[]}`, 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Closed order", func(t *testing.T) {
		f := newFixture()
		f.orders.On("AddItems", mock.Anything, int64(1), int64(100), mock.Anything).
			Return(nil, &order.Error{Kind: order.KindConflict, Op: "add items", Err: order.ErrOrderClosed})

		rec := f.do(t, http.MethodPost, "/orders/100/items", `{"products":[{"id":2}]}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestOrderHandler_Update(t *testing.T) {
	t.Run("Explicit null clears table", func(t *testing.T) {
		f := newFixture()
		completed := order.StatusCompleted
		version := int64(4)
		expected := order.Patch{
			Status:  &completed,
			TableID: order.OptionalID{Set: true},
			Version: &version,
		}
		f.orders.On("UpdateOrder", mock.Anything, int64(1), int64(100), expected).Return(sampleOrder(), nil)

		rec := f.do(t, http.MethodPut, "/orders/100", `{"status":"completed","tableId":null,"version":4}`, 1, auth.RoleManager)

		assert.Equal(t, http.StatusOK, rec.Code)
		f.orders.AssertExpectations(t)
	})

	t.Run("Sets waiter", func(t *testing.T) {
		f := newFixture()
		f.orders.On("UpdateOrder", mock.Anything, int64(1), int64(100), mock.MatchedBy(func(p order.Patch) bool {
			return p.Status == nil && !p.TableID.Set && p.WaiterID.Set && *p.WaiterID.Value == 5
		})).Return(sampleOrder(), nil)

		rec := f.do(t, http.MethodPut, "/orders/100", `{"waiterId":5}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Bad table id", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPut, "/orders/100", `{"tableId":"seven"}`, 1, auth.RoleWaiter)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Stale version", func(t *testing.T) {
		f := newFixture()
		f.orders.On("UpdateOrder", mock.Anything, int64(1), int64(100), mock.Anything).
			Return(nil, &order.Error{Kind: order.KindConflict, Op: "update order", Err: order.ErrStaleVersion})

		rec := f.do(t, http.MethodPut, "/orders/100", `{"status":"cancelled","version":1}`, 1, auth.RoleWaiter)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestOrderHandler_Delete(t *testing.T) {
	t.Run("No content", func(t *testing.T) {
		f := newFixture()
		f.orders.On("DeleteOrder", mock.Anything, int64(1), int64(100)).Return(nil)

		rec := f.do(t, http.MethodDelete, "/orders/100", "", 1, auth.RoleAdmin)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("Mismatched tenant", func(t *testing.T) {
		f := newFixture()
		f.orders.On("DeleteOrder", mock.Anything, int64(2), int64(100)).
			Return(&order.Error{Kind: order.KindNotFound, Op: "delete order", Err: order.ErrOrderNotFound})

		rec := f.do(t, http.MethodDelete, "/orders/100", "", 2, auth.RoleManager)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		f.orders.AssertExpectations(t)
	})
}

func TestKitchenHandler(t *testing.T) {
	t.Run("Queue", func(t *testing.T) {
		f := newFixture()
		f.kitchen.On("GetQueue", mock.Anything, int64(1)).Return([]*order.Order{sampleOrder()}, nil)

		rec := f.do(t, http.MethodGet, "/kitchen/queue", "", 1, auth.RoleChef)

		assert.Equal(t, http.StatusOK, rec.Code)
		var out []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Len(t, out, 1)
	})

	t.Run("Update item status", func(t *testing.T) {
		f := newFixture()
		item := sampleOrder().Items[0]
		item.Status = order.ItemReady
		f.orders.On("UpdateItemStatus", mock.Anything, int64(1), int64(1000), order.ItemStatusUpdate{Status: order.ItemReady}).Return(item, nil)

		rec := f.do(t, http.MethodPut, "/kitchen/item/1000", `{"status":"ready"}`, 1, auth.RoleChef)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", decodeBody(t, rec)["status"])
	})

	t.Run("Missing status", func(t *testing.T) {
		f := newFixture()
		rec := f.do(t, http.MethodPut, "/kitchen/item/1000", `{}`, 1, auth.RoleChef)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unknown status", func(t *testing.T) {
		f := newFixture()
		f.orders.On("UpdateItemStatus", mock.Anything, int64(1), int64(1000), order.ItemStatusUpdate{Status: "burnt"}).
			Return(nil, &order.Error{Kind: order.KindValidation, Op: "update item status", Err: order.ErrInvalidStatus})

		rec := f.do(t, http.MethodPut, "/kitchen/item/1000", `{"status":"burnt"}`, 1, auth.RoleChef)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid status", decodeBody(t, rec)["error"])
	})

	t.Run("Item of another restaurant", func(t *testing.T) {
		f := newFixture()
		f.orders.On("UpdateItemStatus", mock.Anything, int64(2), int64(1000), mock.Anything).
			Return(nil, &order.Error{Kind: order.KindNotFound, Op: "find item", Err: order.ErrItemNotFound})

		rec := f.do(t, http.MethodPut, "/kitchen/item/1000", `{"status":"ready"}`, 2, auth.RoleChef)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	rec := httptest.NewRecorder()

	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

package handler

import (
	"net/http"

	"restohub-be/internal/auth"
	"restohub-be/internal/kitchen"
	"restohub-be/internal/logger"
	"restohub-be/internal/middleware"
	"restohub-be/internal/order"
	"restohub-be/internal/realtime"

	"github.com/gorilla/mux"
)

type RouterDeps struct {
	Orders     order.Service
	Kitchen    kitchen.Service
	Hub        *realtime.Hub
	Limiter    *middleware.RateLimiter
	JWTSecret  string
	CORSOrigin string
}

var (
	staff       = []auth.Role{auth.RoleAdmin, auth.RoleManager, auth.RoleWaiter}
	managers    = []auth.Role{auth.RoleAdmin, auth.RoleManager}
	kitchenCrew = []auth.Role{auth.RoleAdmin, auth.RoleChef}
)

func guard(roles []auth.Role, h http.HandlerFunc) http.Handler {
	return middleware.RequireRoles(roles...)(h)
}

// NewRouter wires every route behind request id, logging and CORS.
// Everything except /health requires a valid token.
func NewRouter(d RouterDeps) http.Handler {
	orders := NewOrderHandler(d.Orders)
	kitchenH := NewKitchenHandler(d.Kitchen, d.Orders)

	r := mux.NewRouter()
	r.HandleFunc("/health", health(d.Hub)).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(d.JWTSecret))
	if d.Limiter != nil {
		api.Use(d.Limiter.Middleware)
	}

	api.Handle("/orders", guard(managers, orders.List)).Methods(http.MethodGet)
	api.Handle("/orders", guard(staff, orders.Create)).Methods(http.MethodPost)
	api.Handle("/orders/{id}", guard(staff, orders.Get)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", guard(staff, orders.Update)).Methods(http.MethodPut)
	api.Handle("/orders/{id}", guard(managers, orders.Delete)).Methods(http.MethodDelete)
	api.Handle("/orders/{id}/items", guard(staff, orders.AddItems)).Methods(http.MethodPost)

	api.Handle("/kitchen/queue", guard(kitchenCrew, kitchenH.Queue)).Methods(http.MethodGet)
	api.Handle("/kitchen/item/{id}", guard(kitchenCrew, kitchenH.UpdateItemStatus)).Methods(http.MethodPut)

	if d.Hub != nil {
		api.HandleFunc("/ws", d.Hub.ServeWS).Methods(http.MethodGet)
	}

	var h http.Handler = r
	h = middleware.CORS(d.CORSOrigin)(h)
	h = middleware.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

type healthResponse struct {
	Status          string `json:"status"`
	RealtimeClients int    `json:"realtimeClients"`
}

func health(hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		if hub != nil {
			resp.RealtimeClients = hub.ClientCount()
		}
		jsonResponse(w, http.StatusOK, resp)
	}
}

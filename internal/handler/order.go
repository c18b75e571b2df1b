package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"restohub-be/internal/order"
	"restohub-be/internal/utils"

	"github.com/gorilla/mux"
)

type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := utils.ParseID(mux.Vars(r)["id"])
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
	}
	return id, ok
}

// List handles GET /orders. ?status accepts a comma separated list and may
// repeat.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter order.ListFilter
	for _, raw := range r.URL.Query()["status"] {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, order.OrderStatus(s))
			}
		}
	}

	orders, err := h.svc.ListOrders(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), filter)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), id)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input order.CreateOrderInput
	if err := decodeAndValidate(r, &input); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), input)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, o)
}

type addItemsResponse struct {
	Message string       `json:"message"`
	Order   *order.Order `json:"order"`
}

func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var input order.AddItemsInput
	if err := decodeAndValidate(r, &input); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.svc.AddItems(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), id, input.Products)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, addItemsResponse{Message: "Items added successfully", Order: o})
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	patch, err := decodePatch(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.svc.UpdateOrder(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), id, patch)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), id); err != nil {
		serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodePatch keeps absent fields apart from explicit nulls, so
// {"tableId": null} clears the table while {} leaves it alone.
func decodePatch(r *http.Request) (order.Patch, error) {
	var (
		patch  order.Patch
		fields map[string]json.RawMessage
	)
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return patch, fmt.Errorf("invalid request body: %w", err)
	}

	if raw, ok := fields["status"]; ok && !isNull(raw) {
		var s order.OrderStatus
		if err := json.Unmarshal(raw, &s); err != nil {
			return patch, fmt.Errorf("status must be a string")
		}
		patch.Status = &s
	}

	var err error
	if patch.TableID, err = optionalID(fields, "tableId"); err != nil {
		return patch, err
	}
	if patch.WaiterID, err = optionalID(fields, "waiterId"); err != nil {
		return patch, err
	}

	if raw, ok := fields["version"]; ok && !isNull(raw) {
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return patch, fmt.Errorf("version must be an integer")
		}
		patch.Version = &v
	}

	return patch, nil
}

func optionalID(fields map[string]json.RawMessage, key string) (order.OptionalID, error) {
	raw, ok := fields[key]
	if !ok {
		return order.OptionalID{}, nil
	}
	if isNull(raw) {
		return order.OptionalID{Set: true}, nil
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil || v <= 0 {
		return order.OptionalID{}, fmt.Errorf("%s must be a positive integer or null", key)
	}
	return order.OptionalID{Set: true, Value: &v}, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

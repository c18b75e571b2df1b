package handler

import (
	"net/http"

	"restohub-be/internal/kitchen"
	"restohub-be/internal/order"
	"restohub-be/internal/utils"
)

type KitchenHandler struct {
	queue  kitchen.Service
	orders order.Service
}

func NewKitchenHandler(queue kitchen.Service, orders order.Service) *KitchenHandler {
	return &KitchenHandler{queue: queue, orders: orders}
}

func (h *KitchenHandler) Queue(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queue.GetQueue(r.Context(), utils.GetRestaurantIDFromContext(r.Context()))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, orders)
}

func (h *KitchenHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var input order.ItemStatusUpdate
	if err := decodeAndValidate(r, &input); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.orders.UpdateItemStatus(r.Context(), utils.GetRestaurantIDFromContext(r.Context()), id, input)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

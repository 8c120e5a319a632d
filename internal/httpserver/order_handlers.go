package httpserver

import (
	"errors"
	"net/http"

	orderdomain "storefront/backoffice/internal/domain/order"
	productdomain "storefront/backoffice/internal/domain/product"
	orderusecase "storefront/backoffice/internal/usecase/order"
)

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		orders, err := s.orderService.List(ctx, r.URL.Query().Get("status"))
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeData(w, http.StatusOK, orders)
	case http.MethodPost:
		var payload orderusecase.CreateInput
		if !decodeJSON(w, r, &payload, "items are required") {
			return
		}
		order, err := s.orderService.Create(ctx, payload)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeData(w, http.StatusCreated, order)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	order, err := s.orderService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func (s *Server) handlePayOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	order, err := s.orderService.Pay(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	order, err := s.orderService.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orderdomain.ErrNotFound), errors.Is(err, productdomain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orderdomain.ErrInsufficientStock), errors.Is(err, orderdomain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

package httpserver

import (
	"errors"
	"net/http"

	productdomain "storefront/backoffice/internal/domain/product"
	productusecase "storefront/backoffice/internal/usecase/product"
)

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		page, err := s.productService.List(ctx, productdomain.ParseQuery(r.URL.Query()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		var payload productusecase.CreateInput
		if !decodeJSON(w, r, &payload, "name and sku are required") {
			return
		}
		item, err := s.productService.Create(ctx, payload)
		if err != nil {
			switch {
			case errors.Is(err, productdomain.ErrDuplicateSKU):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusCreated, item)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleProductByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		item, err := s.productService.Get(ctx, id)
		if err != nil {
			if errors.Is(err, productdomain.ErrNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodPut, http.MethodPatch:
		var payload productusecase.UpdateInput
		if !decodeJSON(w, r, &payload, "update payload required") {
			return
		}
		item, err := s.productService.Update(ctx, id, payload)
		if err != nil {
			switch {
			case errors.Is(err, productdomain.ErrNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, productdomain.ErrDuplicateSKU):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusBadRequest, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := s.productService.Delete(ctx, id); err != nil {
			if errors.Is(err, productdomain.ErrNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

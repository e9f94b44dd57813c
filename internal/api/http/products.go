package http

import (
	"net/http"

	"rental-inventory-backend/internal/domain"
)

type quantityRequest struct {
	OwnedQuantity int `json:"owned_quantity"`
}

type rangeRequest struct {
	StartDate domain.Date `json:"start_date"`
	EndDate   domain.Date `json:"end_date"`
	Quantity  int         `json:"quantity"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := decodeBody(r, &p); err != nil {
		writeError(w, err)
		return
	}
	if err := h.products.CreateProduct(r.Context(), &p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetProduct(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SetOwnedQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.products.SetOwnedQuantity(r.Context(), pathID(r), req.OwnedQuantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CheckAvailability answers GET /v1/products/{id}/availability?start=&end=&quantity=
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}
	qty, err := queryInt(r, "quantity", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.engine.CheckAvailability(r.Context(), pathID(r), start, end, qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ReadLedger(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}
	days, err := h.ledger.Read(r.Context(), pathID(r), start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.engine.Reserve(r.Context(), pathID(r), req.StartDate, req.EndDate, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.engine.Release(r.Context(), pathID(r), req.StartDate, req.EndDate, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

package http

import (
	"context"
	"net/http"

	"rental-inventory-backend/internal/domain"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

type extendRequest struct {
	NewReturnDate    domain.Date `json:"new_return_date"`
	AdditionalAmount int64       `json:"additional_amount"`
}

type shortenRequest struct {
	NewReturnDate domain.Date `json:"new_return_date"`
	CreditAmount  int64       `json:"credit_amount"`
}

type paymentRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.respondOrder(w, r, h.orders.GetOrder)
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	h.respondOrder(w, r, h.orders.ConfirmOrder)
}

func (h *Handler) StartRental(w http.ResponseWriter, r *http.Request) {
	h.respondOrder(w, r, h.orders.StartRental)
}

// respondOrder runs a body-less order operation on the {id} path variable.
func (h *Handler) respondOrder(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*domain.RentalOrder, error)) {
	o, err := op(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) CompleteRental(w http.ResponseWriter, r *http.Request) {
	var req domain.CompleteRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	o, err := h.orders.CompleteRental(r.Context(), pathID(r), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	o, err := h.orders.CancelOrder(r.Context(), pathID(r), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ExtendOrder(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := h.orders.ExtendOrder(r.Context(), pathID(r), req.NewReturnDate, req.AdditionalAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ShortenOrder(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := h.orders.ShortenOrder(r.Context(), pathID(r), req.NewReturnDate, req.CreditAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) LateFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.orders.LateFee(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orders.Snapshot(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.invoices.ListInvoices(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.invoices.Balance(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.invoices.RecordPayment(r.Context(), pathID(r), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

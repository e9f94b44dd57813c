package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rental-inventory-backend/internal/domain"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/service"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// retryAfterSeconds is advertised to clients whose request lost a lock race.
const retryAfterSeconds = 1

// Handler serves the rental REST API
type Handler struct {
	products service.ProductService
	ledger   service.AvailabilityLedger
	engine   service.ReservationEngine
	orders   service.OrderService
	invoices service.InvoiceService
}

// NewHandler creates a new API handler
func NewHandler(products service.ProductService, ledger service.AvailabilityLedger, engine service.ReservationEngine,
	orders service.OrderService, invoices service.InvoiceService) *Handler {
	return &Handler{
		products: products,
		ledger:   ledger,
		engine:   engine,
		orders:   orders,
		invoices: invoices,
	}
}

// RegisterRoutes registers the /v1 endpoints on router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(logRequests)

	v1.HandleFunc("/products", h.CreateProduct).Methods(http.MethodPost)
	v1.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}/quantity", h.SetOwnedQuantity).Methods(http.MethodPut)
	v1.HandleFunc("/products/{id}/availability", h.CheckAvailability).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}/ledger", h.ReadLedger).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}/reservations", h.Reserve).Methods(http.MethodPost)
	v1.HandleFunc("/products/{id}/releases", h.Release).Methods(http.MethodPost)

	v1.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/late-fee", h.LateFee).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/snapshot", h.Snapshot).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/confirm", h.ConfirmOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/start", h.StartRental).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/complete", h.CompleteRental).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/extend", h.ExtendOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/shorten", h.ShortenOrder).Methods(http.MethodPost)
	v1.HandleFunc("/orders/{id}/invoices", h.ListInvoices).Methods(http.MethodGet)
	v1.HandleFunc("/orders/{id}/balance", h.Balance).Methods(http.MethodGet)

	v1.HandleFunc("/invoices/{id}/payments", h.RecordPayment).Methods(http.MethodPost)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type errorResponse struct {
	Error            string        `json:"error"`
	Code             string        `json:"code"`
	ProductID        string        `json:"product_id,omitempty"`
	Requested        int           `json:"requested,omitempty"`
	MinAvailable     *int          `json:"min_available,omitempty"`
	ConflictingDates []domain.Date `json:"conflicting_dates,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	var capErr *domain.CapacityError
	switch {
	case errors.As(err, &capErr):
		status = http.StatusConflict
		resp.Code = "insufficient_capacity"
		resp.ProductID = capErr.ProductID
		resp.Requested = capErr.Requested
		minAvailable := capErr.MinAvailable
		resp.MinAvailable = &minAvailable
		resp.ConflictingDates = capErr.ConflictingDates
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		status = http.StatusServiceUnavailable
		resp.Code = "concurrency_conflict"
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	case errors.Is(err, domain.ErrInvalidStateTransition):
		status = http.StatusUnprocessableEntity
		resp.Code = "invalid_state_transition"
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		resp.Code = "invalid_argument"
	default:
		resp.Code = "internal"
		resp.Error = "internal error"
		logger.Error("Unhandled API error", "error", err)
	}
	writeJSON(w, status, resp)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func queryDate(r *http.Request, name string) (domain.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return domain.Date{}, fmt.Errorf("%w: query parameter %q is required", domain.ErrInvalidArgument, name)
	}
	return domain.ParseDate(raw)
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: query parameter %q must be an integer", domain.ErrInvalidArgument, name)
	}
	return n, nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

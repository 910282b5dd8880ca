package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"orderdesk/internal/api/dto"
	"orderdesk/internal/order"
	"orderdesk/internal/order/service"
)

const (
	msgMissingFields = "Missing required order fields"
	msgInvalidJSON   = "Invalid JSON payload"
	msgInternal      = "Internal server error while placing the order"
	msgNotFound      = "Order not found"
	msgInvalidID     = "Invalid order id"
	msgLoadFailed    = "Internal server error while loading the order"
)

type Handler struct {
	Service *service.Service
	Logger  *zap.Logger
}

func NewHandler(s *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: s, Logger: logger}
}

// orderResponse - JSON-представление ордера. Числа пишутся как JSON numbers.
type orderResponse struct {
	ID         int64        `json:"id"`
	Type       order.Type   `json:"type"`
	Side       order.Side   `json:"side"`
	Instrument string       `json:"instrument"`
	LimitPrice *json.Number `json:"limit_price,omitempty"`
	Quantity   json.Number  `json:"quantity"`
	CreatedAt  string       `json:"created_at"`
}

func newOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		Type:       o.Type,
		Side:       o.Side,
		Instrument: o.Instrument,
		Quantity:   json.Number(o.Quantity.String()),
		CreatedAt:  o.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	if o.LimitPrice != nil {
		p := json.Number(o.LimitPrice.String())
		resp.LimitPrice = &p
	}
	return resp
}

// PlaceOrder handles POST /api/orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if err := dto.Validate.Struct(req); err != nil {
		writeMessage(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	created, err := h.Service.PlaceOrder(r.Context(), order.Draft{
		Type:       order.Type(req.Type),
		Side:       order.Side(req.Side),
		Instrument: req.Instrument,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
	})
	if err != nil {
		h.placeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, newOrderResponse(created))
}

func (h *Handler) placeOrderError(w http.ResponseWriter, err error) {
	var (
		validationErr   *order.ValidationError
		notForwardedErr *service.NotForwardedError
	)

	switch {
	case errors.As(err, &validationErr):
		writeMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &notForwardedErr):
		h.Logger.Error("Error placing order at stock exchange",
			zap.Int64("order_id", notForwardedErr.Order.ID),
			zap.Bool("persisted", true),
			zap.Error(notForwardedErr.Err),
		)
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	default:
		h.Logger.Error("Error processing order", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.Logger.Error("Error loading order", zap.Int64("order_id", id), zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, msgLoadFailed)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.MessageResponse{Message: message})
}

// Routes регистрирует маршруты ордеров на переданном роутере.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/orders", h.PlaceOrder)
	r.Get("/api/orders/{id}", h.GetOrder)
}

package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-orders/internal/application/payment"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

// OrderQueries is the read side the handler needs.
type OrderQueries interface {
	Get(ctx context.Context, id string) (*domainOrder.Order, error)
	List(ctx context.Context, userID string) ([]*domainOrder.Order, error)
	Payments(ctx context.Context, orderID string) ([]domainPayment.Record, error)
}

type (
	CreateOrder   = application.UseCase[appOrder.CreateOrderInput, *appOrder.CreateOrderResult]
	SettlePayment = application.UseCase[appPayment.SettlePaymentInput, *appPayment.SettlePaymentResult]
)

type Handler struct {
	createOrder   CreateOrder
	settlePayment SettlePayment
	queries       OrderQueries

	log observability.Logger
	tel observability.Observability
}

func NewHandler(createOrder CreateOrder, settlePayment SettlePayment, queries OrderQueries, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	return &Handler{
		createOrder:   createOrder,
		settlePayment: settlePayment,
		queries:       queries,
		log:           tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:           tel,
	}
}

// Router builds the orders API. Extra routes, such as /metrics, can be mounted on
// the returned router by the caller.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/orders", h.handleListOrders)
	h.handle(r, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.handle(r, http.MethodPost, "/orders/{id}/payments", h.handleSettlePayment)
	h.handle(r, http.MethodGet, "/orders/{id}/payments", h.handleListPayments)
	h.handle(r, http.MethodGet, "/health", h.handleHealth)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route_not_found", Message: "route not found"})
	})
	return r
}

// handle wires one route as
// Trace → Request Logger → HTTP metrics → Access log → Handler.
func (h *Handler) handle(r chi.Router, method, pattern string, handler http.HandlerFunc) {
	route := method + " " + pattern
	wrapped := h.withTrace(
		RequestLogger(h.log, func(r *http.Request) string { return r.Header.Get(headerRequestID) })(
			h.withHTTPMetrics(
				h.withAccessLog(handler),
			),
		),
	)
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	items := make([]appOrder.CreateOrderItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, appOrder.CreateOrderItem{ProductID: p.ProductID, Quantity: p.Quantity})
	}
	result, err := h.createOrder.Execute(r.Context(), appOrder.CreateOrderInput{
		UserID: req.UserID,
		Items:  items,
	})
	if err != nil {
		var persisted *domainOrder.Order
		if result != nil {
			persisted = result.Order
		}
		h.writeError(w, r, err, persisted)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.queries.List(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queries.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleSettlePayment(w http.ResponseWriter, r *http.Request) {
	var req settlePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	payments := make([]appPayment.PaymentInput, 0, len(req.Payments))
	for i, p := range req.Payments {
		if p.Total == nil {
			h.writeError(w, r, domainOrder.NewValidationError(fmt.Sprintf("payments[%d].total is required", i)), nil)
			return
		}
		payments = append(payments, appPayment.PaymentInput{PaymentTypeID: p.PaymentTypeID, Amount: *p.Total})
	}

	result, err := h.settlePayment.Execute(r.Context(), appPayment.SettlePaymentInput{
		OrderID:  chi.URLParam(r, "id"),
		Payments: payments,
	})
	if err != nil {
		var settled *domainOrder.Order
		if result != nil {
			settled = result.Order
		}
		h.writeError(w, r, err, settled)
		return
	}

	status := http.StatusOK
	if result.Decision != domainPayment.DecisionAuthorized {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, settlePaymentResponse{
		Decision: result.Decision,
		Order:    toOrderResponse(result.Order),
	})
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.queries.Payments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentRecords(records))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeError renders err through the taxonomy. order is attached when the
// workflow got past persistence before failing.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, order *domainOrder.Order) {
	status, body, known := classify(err)
	logger := logctx.FromOr(r.Context(), h.log)
	if !known {
		logger.Error("http_internal_error", observability.Err(err))
	} else if status >= http.StatusInternalServerError {
		logger.Warn("http_upstream_error", observability.Err(err))
	}
	if order != nil {
		resp := toOrderResponse(order)
		body.Order = &resp
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object, rejecting unknown fields and values of
// the wrong type. Failures come back as validation errors.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return domainOrder.NewValidationError(fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type))
		}
		return domainOrder.NewValidationError("malformed request body: " + err.Error())
	}
	if decoder.More() {
		return domainOrder.NewValidationError("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type routeKey struct{}

// contextWithRoute stores the route template so metrics and logs keep low-cardinality labels.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

package httppresentation

import (
	"errors"
	"net/http"

	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
)

type errorKind struct {
	kind   error
	status int
	code   string
}

var errorKinds = []errorKind{
	{domainOrder.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domainOrder.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{domainOrder.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{domainOrder.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
	{domainOrder.ErrNotFound, http.StatusNotFound, "order_not_found"},
	{domainOrder.ErrNotSettleable, http.StatusBadRequest, "order_not_settleable"},
	{domainOrder.ErrAmountMismatch, http.StatusBadRequest, "amount_mismatch"},
	{domainOrder.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream_unavailable"},
	{domainOrder.ErrStockSync, http.StatusBadGateway, "stock_sync_failure"},
	{domainOrder.ErrLedgerSync, http.StatusBadGateway, "ledger_sync_failure"},
}

// classify maps an error to its HTTP status and body. The bool is false for
// errors outside the taxonomy; those get the generic 500 body.
func classify(err error) (int, errorResponse, bool) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.kind) {
			continue
		}
		body := errorResponse{Error: k.code, Message: err.Error()}
		var oerr *domainOrder.Error
		if errors.As(err, &oerr) {
			body.Entity = oerr.Entity
			body.ID = oerr.ID
			body.Details = oerr.Details
			if oerr.Message != "" {
				body.Message = oerr.Message
			}
		}
		return k.status, body, true
	}
	return http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: "internal server error",
	}, false
}

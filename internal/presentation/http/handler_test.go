package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-orders/internal/application/order"
	appPayment "github.com/Zhima-Mochi/minishop-orders/internal/application/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"
	domainOrder "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-orders/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-orders/internal/infrastructure/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequentialIDs struct{ n int }

func (s *sequentialIDs) NewID() string {
	s.n++
	return "order-" + string(rune('0'+s.n))
}

// brokenStock fails every decrement for one product.
type brokenStock struct {
	*memory.ProductDirectory
	productID string
}

func (b *brokenStock) AdjustStock(ctx context.Context, id string, delta int) (*catalog.Product, error) {
	if id == b.productID {
		return nil, errors.New("products api: 503")
	}
	return b.ProductDirectory.AdjustStock(ctx, id, delta)
}

type apiFixture struct {
	repo     *memory.OrderRepository
	products *memory.ProductDirectory
	ledger   *memory.PaymentLedger
	server   *httptest.Server
}

func newAPI(t *testing.T, decision domainPayment.Decision, brokenProduct string) *apiFixture {
	t.Helper()
	f := &apiFixture{
		repo: memory.NewOrderRepository(),
		products: memory.NewProductDirectory(
			catalog.Product{ID: "P1", Name: "Pen", Price: decimal.RequireFromString("10.00"), Stock: 5},
			catalog.Product{ID: "P2", Name: "Pad", Price: decimal.RequireFromString("2.50"), Stock: 3},
		),
		ledger: memory.NewPaymentLedger(),
	}
	var products appOrder.ProductDirectory = f.products
	if brokenProduct != "" {
		products = &brokenStock{ProductDirectory: f.products, productID: brokenProduct}
	}
	collab := appOrder.Collaborators{
		Users:    memory.NewUserDirectory("u-1", "u-2"),
		Products: products,
		Ledger:   f.ledger,
	}
	create := appOrder.NewCreateOrderUseCase(f.repo, collab, &sequentialIDs{}, nil, nil, nil)
	settle := appPayment.NewSettlePaymentUseCase(f.repo, appPayment.FixedAuthorizer(decision), f.ledger, nil, nil, nil)
	queries := appOrder.NewQueryService(f.repo, f.ledger, nil)

	f.server = httptest.NewServer(NewHandler(create, settle, queries, nil).Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out = map[string]any{"items": raw}
		}
	}
	return resp, out
}

func decimalOf(t *testing.T, v any) decimal.Decimal {
	t.Helper()
	switch x := v.(type) {
	case string:
		return decimal.RequireFromString(x)
	case float64:
		return decimal.NewFromFloat(x)
	}
	t.Fatalf("not a decimal: %#v", v)
	return decimal.Zero
}

func TestCreateOrderReturnsPricedOrder(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")

	resp, body := api.do(t, http.MethodPost, "/orders",
		`{"userId":"u-1","products":[{"productId":"P1","quantity":2},{"productId":"P2","quantity":1}]}`)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "order-1", body["id"])
	assert.Equal(t, "u-1", body["userId"])
	assert.Equal(t, string(domainOrder.StatusPendingPayment), body["status"])
	assert.True(t, decimalOf(t, body["totalValue"]).Equal(decimal.RequireFromString("22.50")))
	assert.NotContains(t, body, "pendingSync")
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))

	items := body["products"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "P1", first["productId"])
	assert.EqualValues(t, 2, first["quantity"])
	assert.True(t, decimalOf(t, first["unitPrice"]).Equal(decimal.RequireFromString("10")))

	p1, err := api.products.Get(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock)
}

func TestCreateOrderRejectsMalformedBodies(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")

	cases := map[string]string{
		"unknown field":       `{"userId":"u-1","products":[{"productId":"P1","quantity":1}],"coupon":"X"}`,
		"fractional quantity": `{"userId":"u-1","products":[{"productId":"P1","quantity":1.5}]}`,
		"quantity as string":  `{"userId":"u-1","products":[{"productId":"P1","quantity":"1"}]}`,
		"empty cart":          `{"userId":"u-1","products":[]}`,
		"missing user":        `{"products":[{"productId":"P1","quantity":1}]}`,
		"not json":            `userId=u-1`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, out := api.do(t, http.MethodPost, "/orders", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "validation_error", out["error"])
		})
	}

	orders, err := api.repo.List(context.Background(), domainOrder.Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderMapsLookupFailures(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")

	resp, body := api.do(t, http.MethodPost, "/orders", `{"userId":"ghost","products":[{"productId":"P1","quantity":1}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "user_not_found", body["error"])
	assert.Equal(t, "ghost", body["id"])

	resp, body = api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P9","quantity":1}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "product_not_found", body["error"])
	assert.Equal(t, "P9", body["id"])

	resp, body = api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P2","quantity":4}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "insufficient_stock", body["error"])
	assert.Equal(t, "P2", body["id"])
}

func TestCreateOrderStockSyncFailureCarriesPersistedOrder(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "P2")

	resp, body := api.do(t, http.MethodPost, "/orders",
		`{"userId":"u-1","products":[{"productId":"P1","quantity":1},{"productId":"P2","quantity":1}]}`)

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "stock_sync_failure", body["error"])
	order := body["order"].(map[string]any)
	assert.Equal(t, string(domainOrder.StatusPendingPayment), order["status"])
	pending := order["pendingSync"].(map[string]any)
	assert.Equal(t, []any{"P2"}, pending["stock"])

	stored, err := api.repo.Get(context.Background(), order["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, stored.UnsyncedItems())
}

func TestSettlePaymentAuthorizedAndListed(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")
	_, created := api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P1","quantity":2}]}`)
	id := created["id"].(string)

	resp, body := api.do(t, http.MethodPost, "/orders/"+id+"/payments",
		`{"payments":[{"paymentTypeId":1,"total":"15.00"},{"paymentTypeId":2,"total":5}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(domainPayment.DecisionAuthorized), body["decision"])
	assert.Equal(t, string(domainOrder.StatusPaid), body["order"].(map[string]any)["status"])

	resp, body = api.do(t, http.MethodGet, "/orders/"+id+"/payments", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	records := body["items"].([]any)
	require.Len(t, records, 2)
	assert.EqualValues(t, 1, records[0].(map[string]any)["typePaymentId"])
	assert.Equal(t, id, records[0].(map[string]any)["orderId"])
}

func TestSettlePaymentDeclinedAnswersBadRequestWithOrder(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionDeclined, "")
	_, created := api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P1","quantity":2}]}`)
	id := created["id"].(string)

	resp, body := api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"paymentTypeId":1,"total":"20.00"}]}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(domainPayment.DecisionDeclined), body["decision"])
	assert.Equal(t, string(domainOrder.StatusPaymentFailed), body["order"].(map[string]any)["status"])

	records, err := api.ledger.ListByOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSettlePaymentErrors(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")
	_, created := api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P1","quantity":2}]}`)
	id := created["id"].(string)

	resp, body := api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"paymentTypeId":1,"total":"19.99"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "amount_mismatch", body["error"])

	resp, body = api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"paymentTypeId":1}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])

	resp, body = api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"total":"20.00"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body["error"])
	assert.Contains(t, body["message"], "paymentTypeId")

	resp, body = api.do(t, http.MethodPost, "/orders/missing/payments", `{"payments":[{"paymentTypeId":1,"total":"1"}]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "order_not_found", body["error"])
	assert.Equal(t, "missing", body["id"])

	resp, _ = api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"paymentTypeId":1,"total":"20"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = api.do(t, http.MethodPost, "/orders/"+id+"/payments", `{"payments":[{"paymentTypeId":1,"total":"20"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "order_not_settleable", body["error"])
}

func TestReadRoutes(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")
	api.do(t, http.MethodPost, "/orders", `{"userId":"u-1","products":[{"productId":"P1","quantity":1}]}`)
	api.do(t, http.MethodPost, "/orders", `{"userId":"u-2","products":[{"productId":"P2","quantity":1}]}`)

	resp, body := api.do(t, http.MethodGet, "/orders", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["items"], 2)

	resp, body = api.do(t, http.MethodGet, "/orders?userId=u-2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	only := body["items"].([]any)
	require.Len(t, only, 1)
	assert.Equal(t, "u-2", only[0].(map[string]any)["userId"])

	resp, body = api.do(t, http.MethodGet, "/orders/order-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-1", body["userId"])

	resp, body = api.do(t, http.MethodGet, "/orders/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "order_not_found", body["error"])

	resp, _ = api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type failingQueries struct{ err error }

func (q failingQueries) Get(context.Context, string) (*domainOrder.Order, error) { return nil, q.err }
func (q failingQueries) List(context.Context, string) ([]*domainOrder.Order, error) {
	return nil, q.err
}
func (q failingQueries) Payments(context.Context, string) ([]domainPayment.Record, error) {
	return nil, q.err
}

func TestUnexpectedErrorsDoNotLeakInternals(t *testing.T) {
	h := NewHandler(nil, nil, failingQueries{err: errors.New("pq: connection refused on 10.0.0.7")}, nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/orders")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, body.Message, "10.0.0.7")
}

func TestUpstreamErrorsMapToBadGateway(t *testing.T) {
	h := NewHandler(nil, nil, failingQueries{
		err: domainOrder.NewUpstreamUnavailableError("payment", "o-1", errors.New("timeout")),
	}, nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/orders/o-1/payments")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_unavailable", body.Error)
	assert.Equal(t, "payment", body.Entity)
	assert.Equal(t, "o-1", body.ID)
}

func TestRequestIDIsEchoed(t *testing.T) {
	api := newAPI(t, domainPayment.DecisionAuthorized, "")
	req, err := http.NewRequest(http.MethodGet, api.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(headerRequestID))
}

func TestCreateOrderRepositoryFailureIsInternal(t *testing.T) {
	create := application.UseCaseFunc[appOrder.CreateOrderInput, *appOrder.CreateOrderResult](
		func(context.Context, appOrder.CreateOrderInput) (*appOrder.CreateOrderResult, error) {
			return nil, fmt.Errorf("%w: disk full", appOrder.ErrRepository)
		})
	srv := httptest.NewServer(NewHandler(create, nil, failingQueries{}, nil).Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders", "application/json",
		strings.NewReader(`{"userId":"u-1","products":[{"productId":"P1","quantity":1}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal server error", body.Message)
}

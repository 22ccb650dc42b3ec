package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/pkg/auth"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/redis"
	catalogdomain "storefront/internal/service/catalog/domain"
	cataloginfra "storefront/internal/service/catalog/infrastructure"
	"storefront/internal/service/order/application"
	orderinfra "storefront/internal/service/order/infrastructure"
	"storefront/internal/service/order/infrastructure/adapter"
	promotionapp "storefront/internal/service/promotion/application"
	promotioninfra "storefront/internal/service/promotion/infrastructure"
	"storefront/internal/service/promotion/infrastructure/rule"
)

const declinedNonce = "fake-processor-declined-visa"

type testServer struct {
	router   http.Handler
	tokens   *auth.TokenService
	products *cataloginfra.GormProductRepository
	coupons  *promotionapp.PromotionService
	sales    int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	tracer := noop.NewTracerProvider().Tracer("test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, cataloginfra.AutoMigrate(db))
	require.NoError(t, promotioninfra.AutoMigrate(db))
	require.NoError(t, orderinfra.AutoMigrate(db))

	ts := &testServer{
		tokens:   auth.NewTokenService("test-secret"),
		products: cataloginfra.NewGormProductRepository(db),
	}

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Transaction struct {
				Amount             string `json:"amount"`
				PaymentMethodNonce string `json:"paymentMethodNonce"`
			} `json:"transaction"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Transaction.PaymentMethodNonce == declinedNonce {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"success":false,"message":"Do Not Honor"}`))
			return
		}
		ts.sales++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"transaction": map[string]string{
				"id": "tx-1", "status": "submitted_for_settlement", "amount": body.Transaction.Amount,
			},
		})
	}))
	t.Cleanup(gateway.Close)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	idem, err := adapter.NewIdempotencyRedisAdapter(ctx, redis.Wrap(rdb), time.Minute, time.Hour)
	require.NoError(t, err)

	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	ts.coupons = promotionapp.NewPromotionService(promotioninfra.NewGormCouponRepository(db), rules, tracer)

	payments := adapter.NewPaymentHTTPAdapter(httpclient.NewClient(tracer), config.PaymentConfig{
		Endpoint: gateway.URL, MerchantID: "m1", PublicKey: "pub", PrivateKey: "priv",
	})
	svc := application.NewOrderApplicationService(
		orderinfra.NewGormOrderRepository(db), tracer,
		adapter.NewInventoryCatalogAdapter(ts.products),
		adapter.NewCouponPromotionAdapter(ts.coupons),
		payments, nil, idem, application.Options{},
	)

	handler := NewOrderHandler(svc)
	r := chi.NewRouter()
	r.Use(ts.tokens.Middleware)
	handler.RegisterRoutes(r)
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		handler.RegisterAdminRoutes(r)
	})
	ts.router = r
	return ts
}

func (ts *testServer) seedProduct(t *testing.T, id, price string, stock int) {
	t.Helper()
	p, err := catalogdomain.NewProduct(id, "Product "+id, decimal.RequireFromString(price), &stock)
	require.NoError(t, err)
	require.NoError(t, ts.products.Create(context.Background(), p))
}

func (ts *testServer) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := ts.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return *p.StockQuantity
}

func (ts *testServer) token(t *testing.T, id, role string) string {
	t.Helper()
	tok, err := ts.tokens.Issue(auth.User{ID: id, Email: id + "@example.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func checkoutBody(amount float64, nonce string, items ...application.CheckoutItemDTO) application.CheckoutRequest {
	return application.CheckoutRequest{
		PaymentMethodNonce: nonce,
		Amount:             amount,
		Items:              items,
		ShippingInfo: application.ShippingInfoDTO{
			Name: "Ada Lovelace", Email: "ada@example.com", Address: "1 Analytical Way",
		},
	}
}

func decodeCheckout(t *testing.T, rec *httptest.ResponseRecorder) application.CheckoutResponse {
	t.Helper()
	var resp application.CheckoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCheckoutEndpoint_SuccessAndOwnership(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "12.50", 5)
	owner := ts.token(t, "u1", "")

	rec := ts.do(t, http.MethodPost, "/checkout", owner,
		checkoutBody(25, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 2}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeCheckout(t, rec)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "tx-1", resp.Transaction.ID)
	assert.Equal(t, 3, ts.stock(t, "p1"))

	rec = ts.do(t, http.MethodGet, "/orders/"+resp.OrderID, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "paid", order.Status)
	assert.Equal(t, 25.0, order.TotalAmount)
	assert.Equal(t, "tx-1", order.TransactionID)

	rec = ts.do(t, http.MethodGet, "/orders/"+resp.OrderID, ts.token(t, "u2", ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestCheckoutEndpoint_InsufficientStock(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 2)

	rec := ts.do(t, http.MethodPost, "/checkout", "",
		checkoutBody(30, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Title: "Mug", Quantity: 3}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeCheckout(t, rec)
	assert.False(t, resp.Success)
	require.Len(t, resp.StockErrors, 1)
	assert.Equal(t, "Only 2 of Product p1 available", resp.StockErrors[0].Message)
	assert.Equal(t, 2, resp.StockErrors[0].Available)
	assert.Equal(t, 2, ts.stock(t, "p1"))
	assert.Zero(t, ts.sales)
}

func TestCheckoutEndpoint_DeclinedPaymentKeepsStock(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 2)

	rec := ts.do(t, http.MethodPost, "/checkout", "",
		checkoutBody(20, declinedNonce, application.CheckoutItemDTO{ProductID: "p1", Quantity: 2}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Do Not Honor", decodeCheckout(t, rec).Error)
	assert.Equal(t, 2, ts.stock(t, "p1"))
}

func TestCheckoutEndpoint_WithCoupon(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "50", 5)
	created, err := ts.coupons.CreateCoupon(context.Background(), &promotionapp.CreateCouponRequest{
		Code: "SAVE10", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10), IsActive: true,
	})
	require.NoError(t, err)

	body := checkoutBody(90, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 2})
	body.CouponID = &created.ID
	body.CouponCode = "SAVE10"
	rec := ts.do(t, http.MethodPost, "/checkout", ts.token(t, "u1", ""), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	coupon, err := ts.coupons.GetCoupon(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, coupon.CurrentUsageCount)

	// 客户端金额没有扣掉优惠时拒绝
	body.Amount = 100
	rec = ts.do(t, http.MethodPost, "/checkout", ts.token(t, "u1", ""), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order amount does not match cart total", decodeCheckout(t, rec).Error)
}

func TestCheckoutEndpoint_IdempotencyKeyReplays(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 5)
	body := checkoutBody(10, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 1})

	first := ts.do(t, http.MethodPost, "/checkout", "", body, IdempotencyHeader, "abc")
	second := ts.do(t, http.MethodPost, "/checkout", "", body, IdempotencyHeader, "abc")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decodeCheckout(t, first).OrderID, decodeCheckout(t, second).OrderID)
	assert.Equal(t, 1, ts.sales)
	assert.Equal(t, 4, ts.stock(t, "p1"))
}

func TestCheckoutEndpoint_IdempotencyKeyReusedForDifferentCart(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 5)
	ts.seedProduct(t, "p2", "40", 5)
	token := ts.token(t, "u1", "")

	first := ts.do(t, http.MethodPost, "/checkout", token,
		checkoutBody(10, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 1}), IdempotencyHeader, "abc")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := ts.do(t, http.MethodPost, "/checkout", token,
		checkoutBody(40, "nonce-ok", application.CheckoutItemDTO{ProductID: "p2", Quantity: 1}), IdempotencyHeader, "abc")
	assert.Equal(t, http.StatusUnprocessableEntity, second.Code)
	assert.False(t, decodeCheckout(t, second).Success)
	assert.Equal(t, 1, ts.sales)
	assert.Equal(t, 5, ts.stock(t, "p2"))
}

func TestCheckoutEndpoint_GuestIdempotencyKeysAreIsolated(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 5)
	ts.seedProduct(t, "p2", "40", 5)

	first := ts.do(t, http.MethodPost, "/checkout", "",
		checkoutBody(10, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 1}), IdempotencyHeader, "1")
	second := ts.do(t, http.MethodPost, "/checkout", "",
		checkoutBody(40, "nonce-ok", application.CheckoutItemDTO{ProductID: "p2", Quantity: 1}), IdempotencyHeader, "1")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())

	assert.NotEqual(t, decodeCheckout(t, first).OrderID, decodeCheckout(t, second).OrderID)
	assert.Equal(t, 2, ts.sales)
	assert.Equal(t, 4, ts.stock(t, "p2"))
}

func TestCheckoutEndpoint_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/checkout", "", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Invalid request body"}`, rec.Body.String())
}

func TestOrdersEndpoint_RequiresLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedProduct(t, "p1", "10", 5)
	rec := ts.do(t, http.MethodPost, "/checkout", "",
		checkoutBody(10, "nonce-ok", application.CheckoutItemDTO{ProductID: "p1", Quantity: 1}))
	require.Equal(t, http.StatusOK, rec.Code)
	orderID := decodeCheckout(t, rec).OrderID
	admin := ts.token(t, "admin-1", auth.RoleAdmin)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", ts.token(t, "u1", ""), map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/status", admin, map[string]string{"status": "cancelled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/admin/orders/"+orderID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order application.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "shipped", order.Status)
}

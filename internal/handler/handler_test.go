package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"onlinestore/internal/config"
	"onlinestore/internal/domain/model"
	"onlinestore/internal/handler"
	"onlinestore/internal/infra/cache"
	"onlinestore/internal/infra/memory"
	repo "onlinestore/internal/repository"
	"onlinestore/internal/retry"
	"onlinestore/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// mocks / fakes
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateCheckoutSession(ctx context.Context, in usecase.CheckoutSessionInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

// conflictがtrueの間は、pass回だけ通してあとは衝突を返す
type switchTx struct {
	inner    repo.TransactionManager
	conflict atomic.Bool
	pass     atomic.Int64
}

func (s *switchTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if s.conflict.Load() && s.pass.Add(-1) < 0 {
		return repo.ErrVersionConflict
	}
	return s.inner.WithinTx(ctx, fn)
}

const testSecret = "handler_test_secret"

type testApp struct {
	e       *echo.Echo
	tx      *switchTx
	gateway *GatewayMock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	store := memory.NewStore()
	tx := &switchTx{inner: store}
	gw := new(GatewayMock)

	deps := usecase.Deps{
		Retry: retry.New(2, time.Millisecond, repo.IsTransientConflict),
		Cache: cache.NewMemoryCache(),
	}
	inventory := usecase.NewInventoryUsecase(tx, deps)
	orders := usecase.NewOrderUsecase(tx, inventory, gw, deps)
	cart := usecase.NewCartUsecase(tx, orders, inventory, deps)
	history := usecase.NewHistoryUsecase(tx, deps)
	payments := usecase.NewPaymentUsecase(tx, history, deps)
	products := usecase.NewProductUsecase(tx, deps)
	users := usecase.NewUserUsecase(tx)

	// Stripe-Signatureが"ok"なら本文をそのままイベントとして読む
	parse := func(payload []byte, sig string) (usecase.PaymentEvent, error) {
		if sig != "ok" {
			return usecase.PaymentEvent{}, errors.New("bad signature")
		}
		var ev usecase.PaymentEvent
		err := json.Unmarshal(payload, &ev)
		return ev, err
	}

	cfg := config.Config{JWTSecret: testSecret}
	e := echo.New()
	handler.NewCartHandler(cart).RegisterRoutes(e, cfg, users)
	handler.NewOrderHandler(orders, history).RegisterRoutes(e, cfg, users)
	handler.NewWebhookHandler(payments, parse).RegisterRoutes(e)
	handler.NewAdminHandler(products, inventory).RegisterRoutes(e, cfg)

	return &testApp{e: e, tx: tx, gateway: gw}
}

func token(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"role":  string(role),
		"email": "buyer@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func (a *testApp) do(t *testing.T, method, path, tok, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (a *testApp) seedProduct(t *testing.T, stock int64) int64 {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/admin/products", token(t, 99, model.RoleAdmin),
		`{"name":"pen","description":"blue","price":"2.50","stock":`+jsonInt(stock)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[usecase.ProductOutput](t, rec).ID
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// =====================
// tests
// =====================

func TestCartHandler_AddAndDecrease(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 10)
	tok := token(t, 1, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/orders/items", tok, `{"product_id":`+jsonInt(pid)+`,"quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[usecase.OrderItemOutput](t, rec)
	assert.Equal(t, int64(3), item.Quantity)

	rec = a.do(t, http.MethodPatch, "/orders/items/"+jsonInt(pid)+"/decrease", tok, `{"amount":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[usecase.OrderOutput](t, rec)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(2), out.Items[0].Quantity)

	rec = a.do(t, http.MethodDelete, "/orders/items/"+jsonInt(pid), tok, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[usecase.OrderOutput](t, rec).Items)
}

func TestCartHandler_ErrorMapping(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 2)
	tok := token(t, 1, model.RoleUser)

	// 在庫不足
	rec := a.do(t, http.MethodPost, "/orders/items", tok, `{"product_id":`+jsonInt(pid)+`,"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 数量不正
	rec = a.do(t, http.MethodPatch, "/orders/items/"+jsonInt(pid)+"/decrease", tok, `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 商品なし
	rec = a.do(t, http.MethodPost, "/orders/items", tok, `{"product_id":424242,"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// パスが数値でない
	rec = a.do(t, http.MethodDelete, "/orders/items/abc", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 未認証
	rec = a.do(t, http.MethodPost, "/orders/items", "", `{"product_id":1,"quantity":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartHandler_ConflictIs409(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 2)

	// UserSyncの1回は通す
	a.tx.pass.Store(1)
	a.tx.conflict.Store(true)
	rec := a.do(t, http.MethodPost, "/orders/items", token(t, 1, model.RoleUser), `{"product_id":`+jsonInt(pid)+`,"quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict, please retry", decode[handler.ErrorResponse](t, rec).Error)
}

func TestOrderHandler_SubmitAndWebhook(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 10)
	tok := token(t, 1, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/orders/items", tok, `{"product_id":`+jsonInt(pid)+`,"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode[usecase.OrderItemOutput](t, rec).OrderID

	a.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(in usecase.CheckoutSessionInput) bool {
		return in.OrderID == orderID && in.CustomerEmail == "buyer@example.com"
	})).Return("https://pay.example.com/s/x", nil).Once()

	rec = a.do(t, http.MethodPost, "/orders/"+jsonInt(orderID)+"/submit", tok, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[usecase.SubmitOutput](t, rec)
	assert.Equal(t, model.OrderStatusPending, sub.Status)
	assert.Equal(t, "https://pay.example.com/s/x", sub.PaymentURL)

	// 署名不正
	body := `{"ID":"evt_1","Type":"checkout.session.completed","Metadata":{"orderId":"` + jsonInt(orderID) + `"}}`
	rec = a.do(t, http.MethodPost, "/webhooks/stripe", "", body, "Stripe-Signature", "bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/webhooks/stripe", "", body, "Stripe-Signature", "ok")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// 再送も200
	rec = a.do(t, http.MethodPost, "/webhooks/stripe", "", body, "Stripe-Signature", "ok")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders/history", tok, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	h := decode[usecase.HistoryOutput](t, rec)
	require.Len(t, h.Orders, 1)
	assert.Equal(t, model.OrderStatusPaid, h.Orders[0].Status)

	// 支払い済みは再submitできない
	rec = a.do(t, http.MethodPost, "/orders/"+jsonInt(orderID)+"/submit", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderHandler_SubmitGatewayFailureIs417(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 10)
	tok := token(t, 1, model.RoleUser)

	rec := a.do(t, http.MethodPost, "/orders/items", tok, `{"product_id":`+jsonInt(pid)+`,"quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decode[usecase.OrderItemOutput](t, rec).OrderID

	a.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return("", errors.New("down")).Once()

	rec = a.do(t, http.MethodPost, "/orders/"+jsonInt(orderID)+"/submit", tok, "")
	assert.Equal(t, http.StatusExpectationFailed, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]usecase.OrderOutput](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, model.OrderStatusCreated, list[0].Status)
}

func TestOrderHandler_NotFound(t *testing.T) {
	a := newTestApp(t)
	tok := token(t, 1, model.RoleUser)

	rec := a.do(t, http.MethodGet, "/orders", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders/history", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodDelete, "/orders/12345", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/orders/active", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.OrderStatusCreated, decode[usecase.OrderOutput](t, rec).Status)
}

func TestWebhookHandler_Malformed(t *testing.T) {
	a := newTestApp(t)

	rec := a.do(t, http.MethodPost, "/webhooks/stripe", "", `{"ID":"evt_1","Type":"checkout.session.completed"}`, "Stripe-Signature", "ok")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodPost, "/webhooks/stripe", "", `{"ID":"evt_2","Type":"invoice.created"}`, "Stripe-Signature", "ok")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminHandler_RoleGuardAndStock(t *testing.T) {
	a := newTestApp(t)
	pid := a.seedProduct(t, 5)
	admin := token(t, 99, model.RoleAdmin)

	rec := a.do(t, http.MethodPost, "/admin/stocks/"+jsonInt(pid)+"/increase", token(t, 1, model.RoleUser), `{"amount":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodPost, "/admin/stocks/"+jsonInt(pid)+"/increase", admin, `{"amount":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(8), decode[model.Stock](t, rec).Quantity)

	rec = a.do(t, http.MethodPost, "/admin/stocks/"+jsonInt(pid)+"/decrease", admin, `{"amount":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, http.MethodGet, "/admin/stocks/"+jsonInt(pid), admin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(8), decode[model.Stock](t, rec).Quantity)

	// 在庫行は1商品1つ
	rec = a.do(t, http.MethodPost, "/admin/stocks", admin, `{"product_id":`+jsonInt(pid)+`,"quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodGet, "/admin/stocks/777", admin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

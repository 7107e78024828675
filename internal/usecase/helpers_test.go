package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"onlinestore/internal/domain/model"
	"onlinestore/internal/infra/cache"
	"onlinestore/internal/infra/memory"
	"onlinestore/internal/metrics"
	repo "onlinestore/internal/repository"
	"onlinestore/internal/retry"
	"onlinestore/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type eventRecorder struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (r *eventRecorder) Publish(ctx context.Context, ev model.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *eventRecorder) types() []model.OrderEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OrderEventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// 最初のfailures回は衝突を返すTxManager
type flakyTx struct {
	inner repo.TransactionManager

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if fail {
		return repo.ErrVersionConflict
	}
	return f.inner.WithinTx(ctx, fn)
}

// =====================
// fixture
// =====================

type fixture struct {
	store   *memory.Store
	tx      *flakyTx
	cache   *cache.MemoryCache
	events  *eventRecorder
	gateway *GatewayMock
	metrics *metrics.Metrics

	inventory *usecase.InventoryUsecase
	orders    *usecase.OrderUsecase
	cart      *usecase.CartUsecase
	history   *usecase.HistoryUsecase
	payments  *usecase.PaymentUsecase
	products  *usecase.ProductUsecase
	users     *usecase.UserUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.NewStore(),
		cache:   cache.NewMemoryCache(),
		events:  &eventRecorder{},
		gateway: new(GatewayMock),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.tx = &flakyTx{inner: f.store}

	deps := usecase.Deps{
		Clock:    &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		Metrics:  f.metrics,
		Retry:    retry.New(3, 5*time.Millisecond, repo.IsTransientConflict),
		Cache:    f.cache,
		CacheTTL: time.Minute,
		Events:   f.events,
	}

	f.inventory = usecase.NewInventoryUsecase(f.tx, deps)
	f.orders = usecase.NewOrderUsecase(f.tx, f.inventory, f.gateway, deps)
	f.cart = usecase.NewCartUsecase(f.tx, f.orders, f.inventory, deps)
	f.history = usecase.NewHistoryUsecase(f.tx, deps)
	f.payments = usecase.NewPaymentUsecase(f.tx, f.history, deps)
	f.products = usecase.NewProductUsecase(f.tx, deps)
	f.users = usecase.NewUserUsecase(f.tx)
	return f
}

func (f *fixture) seedProduct(t *testing.T, price string, stock int64) int64 {
	t.Helper()
	out, err := f.products.AdminCreateProduct(context.Background(), usecase.AdminCreateProductInput{
		Name:         "product",
		Description:  "desc",
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return out.ID
}

func (f *fixture) seedUser(t *testing.T, userID int64) {
	t.Helper()
	require.NoError(t, f.users.Sync(context.Background(), userID, fmt.Sprintf("user%d@example.com", userID), "USER"))
}

func (f *fixture) stockOf(t *testing.T, productID int64) int64 {
	t.Helper()
	st, err := f.inventory.Get(context.Background(), productID)
	require.NoError(t, err)
	return st.Quantity
}

func (f *fixture) order(t *testing.T, orderID int64) model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(context.Background(), orderID)
		return err
	}))
	return o
}

// ステータスを直接書き換える（前提条件づくり用）
func (f *fixture) setStatus(t *testing.T, orderID int64, status model.OrderStatus) {
	t.Helper()
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(context.Background(), orderID)
		if err != nil {
			return err
		}
		o.Status = status
		return r.Orders().Update(context.Background(), &o)
	}))
}

func paidEvent(orderID string) usecase.PaymentEvent {
	return usecase.PaymentEvent{ID: "evt_paid_" + orderID, Type: usecase.EventCheckoutCompleted, Metadata: map[string]string{"orderId": orderID}}
}

func failedEvent(eventType, orderID string) usecase.PaymentEvent {
	return usecase.PaymentEvent{ID: "evt_fail_" + orderID, Type: eventType, Metadata: map[string]string{"orderId": orderID}}
}

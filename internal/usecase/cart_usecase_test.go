package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	repo "onlinestore/internal/repository"
	"onlinestore/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartUsecase_AddItem(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10.00", 10)
	ctx := context.Background()

	item, err := f.cart.AddItem(ctx, 1, pid, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), item.Quantity)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("10.00")))

	// 同じ商品は数量加算
	item, err = f.cart.AddItem(ctx, 1, pid, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.Quantity)

	o := f.order(t, item.OrderID)
	require.Len(t, o.Items, 1)
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(5), f.stockOf(t, pid))
}

func TestCartUsecase_AddItem_InsufficientStockRollsBackNewLine(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10.00", 20)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, 1, pid, 50)

	var ise *usecase.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(20), ise.Available)
	assert.Equal(t, int64(50), ise.Requested)

	assert.Equal(t, int64(20), f.stockOf(t, pid))
	_, err = f.orders.ListForUser(ctx, 1)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestCartUsecase_AddItem_InsufficientStockKeepsExistingLine(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10.00", 20)
	ctx := context.Background()

	item, err := f.cart.AddItem(ctx, 1, pid, 5)
	require.NoError(t, err)

	_, err = f.cart.AddItem(ctx, 1, pid, 100)
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)

	o := f.order(t, item.OrderID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(5), o.Items[0].Quantity)
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, int64(15), f.stockOf(t, pid))
}

func TestCartUsecase_AddItem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, 1, 1, 0)
	assert.ErrorIs(t, err, usecase.ErrIllegalArgument)

	_, err = f.cart.AddItem(ctx, 1, 12345, 1)
	var nf *usecase.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, usecase.ResourceProduct, nf.Resource)
}

func TestCartUsecase_AddItem_RetriesConflicts(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "2.00", 5)

	f.tx.failures = 2
	_, err := f.cart.AddItem(context.Background(), 1, pid, 1)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ConflictRetries.WithLabelValues("cart.add")))
	assert.Equal(t, int64(4), f.stockOf(t, pid))
}

func TestCartUsecase_AddItem_ConflictExhausted(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "2.00", 5)

	f.tx.failures = 3
	_, err := f.cart.AddItem(context.Background(), 1, pid, 1)
	assert.True(t, err == repo.ErrVersionConflict, "got %v", err)
	assert.Equal(t, int64(5), f.stockOf(t, pid))
}

func TestCartUsecase_RemoveItem(t *testing.T) {
	f := newFixture(t)
	p1 := f.seedProduct(t, "10.00", 10)
	p2 := f.seedProduct(t, "1.50", 10)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, 1, p1, 3)
	require.NoError(t, err)
	_, err = f.cart.AddItem(ctx, 1, p2, 2)
	require.NoError(t, err)

	out, err := f.cart.RemoveItem(ctx, 1, p1)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, p2, out.Items[0].ProductID)
	assert.True(t, out.TotalPrice.Equal(decimal.RequireFromString("3.00")))
	assert.Equal(t, int64(10), f.stockOf(t, p1))
}

func TestCartUsecase_RemoveItem_NotFound(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "10.00", 10)
	ctx := context.Background()

	_, err := f.cart.RemoveItem(ctx, 1, pid)
	var nf *usecase.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, usecase.ResourceUsersOrder, nf.Resource)

	_, err = f.cart.AddItem(ctx, 1, pid, 1)
	require.NoError(t, err)

	_, err = f.cart.RemoveItem(ctx, 1, pid+100)
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, usecase.ResourceProduct, nf.Resource)
}

func TestCartUsecase_RemoveQuantity(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "4.00", 10)
	ctx := context.Background()

	_, err := f.cart.AddItem(ctx, 1, pid, 5)
	require.NoError(t, err)

	out, err := f.cart.RemoveQuantity(ctx, 1, pid, 2)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(3), out.Items[0].Quantity)
	assert.True(t, out.TotalPrice.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, int64(7), f.stockOf(t, pid))

	// 明細より多い
	_, err = f.cart.RemoveQuantity(ctx, 1, pid, 4)
	var ise *usecase.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(3), ise.Available)

	// 0になったら明細を消す
	out, err = f.cart.RemoveQuantity(ctx, 1, pid, 3)
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.True(t, out.TotalPrice.IsZero())
	assert.Equal(t, int64(10), f.stockOf(t, pid))
}

func TestCartUsecase_RemoveQuantity_IllegalAmountBeforeLookup(t *testing.T) {
	f := newFixture(t)

	// 注文が無くても先に引数エラー
	_, err := f.cart.RemoveQuantity(context.Background(), 1, 1, 0)
	assert.ErrorIs(t, err, usecase.ErrIllegalArgument)

	_, err = f.cart.RemoveQuantity(context.Background(), 1, 1, 1)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestCartUsecase_PendingOrderIsNotEditable(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "4.00", 10)
	ctx := context.Background()

	item, err := f.cart.AddItem(ctx, 1, pid, 2)
	require.NoError(t, err)
	f.setStatus(t, item.OrderID, "PENDING")

	// CREATEDが無いので削除系はNotFound
	_, err = f.cart.RemoveItem(ctx, 1, pid)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	// 追加は新しいCREATED注文に入る
	next, err := f.cart.AddItem(ctx, 1, pid, 1)
	require.NoError(t, err)
	assert.NotEqual(t, item.OrderID, next.OrderID)
	assert.Equal(t, int64(2), f.order(t, item.OrderID).Items[0].Quantity)
}

func TestCartUsecase_ConcurrentUsers_NoOversell(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "1.00", 10)

	var wg sync.WaitGroup
	var ok int64
	for u := int64(1); u <= 25; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := f.cart.AddItem(context.Background(), userID, pid, 1)
			if err == nil {
				atomic.AddInt64(&ok, 1)
				return
			}
			assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
		}(u)
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok)
	assert.Equal(t, int64(0), f.stockOf(t, pid))
}

func TestCartUsecase_SameUserConcurrentAdds_SingleActiveOrder(t *testing.T) {
	f := newFixture(t)
	pid := f.seedProduct(t, "1.00", 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cart.AddItem(context.Background(), 7, pid, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders, err := f.orders.ListForUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 1)
	assert.Equal(t, int64(10), orders[0].Items[0].Quantity)
	assert.Equal(t, int64(90), f.stockOf(t, pid))
}

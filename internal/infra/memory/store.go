// Package memory はプロセス内で完結するストア。Txは1本ずつ直列に実行し、
// エラー時はTx開始時のスナップショットへ戻す。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"
)

type state struct {
	seq int64

	products  map[int64]model.Product
	stocks    map[int64]model.Stock // key: product_id
	orders    map[int64]model.Order // Itemsは持たない
	items     map[int64]model.OrderItem
	histories map[int64]model.OrderHistory
	users     map[int64]model.User
}

func newState() *state {
	return &state{
		products:  map[int64]model.Product{},
		stocks:    map[int64]model.Stock{},
		orders:    map[int64]model.Order{},
		items:     map[int64]model.OrderItem{},
		histories: map[int64]model.OrderHistory{},
		users:     map[int64]model.User{},
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		seq:       s.seq,
		products:  make(map[int64]model.Product, len(s.products)),
		stocks:    make(map[int64]model.Stock, len(s.stocks)),
		orders:    make(map[int64]model.Order, len(s.orders)),
		items:     make(map[int64]model.OrderItem, len(s.items)),
		histories: make(map[int64]model.OrderHistory, len(s.histories)),
		users:     make(map[int64]model.User, len(s.users)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stocks {
		c.stocks[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.histories {
		c.histories[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// 注文に明細をつける
func (s *state) withItems(o model.Order) model.Order {
	items := []model.OrderItem{}
	for _, it := range s.items {
		if it.OrderID == o.ID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	o.Items = items
	return o
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snap
			panic(p)
		}
		if err != nil {
			s.st = snap
		}
	}()

	return fn(&txRepos{st: s.st, now: s.now})
}

type txRepos struct {
	st  *state
	now func() time.Time
}

func (r *txRepos) Orders() repo.OrderRepository { return &orderRepo{st: r.st, now: r.now} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{st: r.st, now: r.now} }
func (r *txRepos) OrderHistories() repo.OrderHistoryRepository { return &historyRepo{st: r.st, now: r.now} }
func (r *txRepos) Stocks() repo.StockRepository { return &stockRepo{st: r.st, now: r.now} }
func (r *txRepos) Products() repo.ProductRepository { return &productRepo{st: r.st, now: r.now} }
func (r *txRepos) Users() repo.UserRepository { return &userRepo{st: r.st, now: r.now} }

package memory

import (
	"context"
	"sort"
	"time"

	"onlinestore/internal/domain/model"
	repo "onlinestore/internal/repository"
)

type productRepo struct {
	st  *state
	now func() time.Time
}

func (r *productRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	p.ID = r.st.nextID()
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	r.st.products[p.ID] = p
	return p, nil
}

type userRepo struct {
	st  *state
	now func() time.Time
}

func (r *userRepo) FindByID(ctx context.Context, userID int64) (model.User, error) {
	u, ok := r.st.users[userID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	for _, ex := range r.st.users {
		if ex.Email == u.Email {
			return model.User{}, repo.ErrUniqueViolation
		}
	}
	if u.ID == 0 {
		u.ID = r.st.nextID()
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt
	r.st.users[u.ID] = u
	return u, nil
}

type stockRepo struct {
	st  *state
	now func() time.Time
}

func (r *stockRepo) Create(ctx context.Context, s model.Stock) (model.Stock, error) {
	if _, ok := r.st.stocks[s.ProductID]; ok {
		return model.Stock{}, repo.ErrUniqueViolation
	}
	s.ID = r.st.nextID()
	s.Version = 0
	s.CreatedAt = r.now()
	s.UpdatedAt = s.CreatedAt
	r.st.stocks[s.ProductID] = s
	return s, nil
}

func (r *stockRepo) FindByProductID(ctx context.Context, productID int64) (model.Stock, error) {
	s, ok := r.st.stocks[productID]
	if !ok {
		return model.Stock{}, repo.ErrNotFound
	}
	return s, nil
}

func (r *stockRepo) FindByProductIDForUpdate(ctx context.Context, productID int64) (model.Stock, error) {
	return r.FindByProductID(ctx, productID)
}

func (r *stockRepo) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	s, ok := r.st.stocks[productID]
	if !ok || s.Quantity < qty {
		return false, nil
	}
	s.Quantity -= qty
	s.Version++
	s.UpdatedAt = r.now()
	r.st.stocks[productID] = s
	return true, nil
}

func (r *stockRepo) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	s, ok := r.st.stocks[productID]
	if !ok {
		return repo.ErrNotFound
	}
	s.Quantity += qty
	s.Version++
	s.UpdatedAt = r.now()
	r.st.stocks[productID] = s
	return nil
}

type orderRepo struct {
	st  *state
	now func() time.Time
}

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.st.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.st.withItems(o), nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) FindActiveByUserIDForUpdate(ctx context.Context, userID int64) (model.Order, error) {
	o, err := r.FindByUserAndStatus(ctx, userID, model.OrderStatusCreated)
	if err == nil {
		return o, nil
	}
	return r.FindByUserAndStatus(ctx, userID, model.OrderStatusPending)
}

func (r *orderRepo) FindByUserAndStatus(ctx context.Context, userID int64, status model.OrderStatus) (model.Order, error) {
	var found *model.Order
	for _, o := range r.st.orders {
		if o.UserID != userID || o.Status != status {
			continue
		}
		if found == nil || o.ID > found.ID {
			o := o
			found = &o
		}
	}
	if found == nil {
		return model.Order{}, repo.ErrNotFound
	}
	return r.st.withItems(*found), nil
}

func (r *orderRepo) ListOpenByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	out := []model.Order{}
	for _, o := range r.st.orders {
		if o.UserID == userID && (o.Status == model.OrderStatusCreated || o.Status == model.OrderStatusPending) {
			out = append(out, r.st.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *orderRepo) Create(ctx context.Context, o model.Order) (model.Order, error) {
	o.ID = r.st.nextID()
	o.Version = 0
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now()
	}
	o.UpdatedAt = r.now()
	o.Items = nil
	r.st.orders[o.ID] = o
	return r.st.withItems(o), nil
}

func (r *orderRepo) Update(ctx context.Context, o *model.Order) error {
	cur, ok := r.st.orders[o.ID]
	if !ok || cur.Version != o.Version {
		return repo.ErrVersionConflict
	}
	next := *o
	next.Items = nil
	next.Version = cur.Version + 1
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.now()
	r.st.orders[o.ID] = next

	o.Version = next.Version
	o.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *orderRepo) Delete(ctx context.Context, orderID int64) error {
	if _, ok := r.st.orders[orderID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.orders, orderID)
	return nil
}

type orderItemRepo struct {
	st  *state
	now func() time.Time
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	o := r.st.withItems(model.Order{ID: orderID})
	return o.Items, nil
}

func (r *orderItemRepo) Create(ctx context.Context, it model.OrderItem) (model.OrderItem, error) {
	for _, ex := range r.st.items {
		if ex.OrderID == it.OrderID && ex.ProductID == it.ProductID {
			return model.OrderItem{}, repo.ErrUniqueViolation
		}
	}
	it.ID = r.st.nextID()
	it.Version = 0
	it.CreatedAt = r.now()
	it.UpdatedAt = it.CreatedAt
	r.st.items[it.ID] = it
	return it, nil
}

func (r *orderItemRepo) Update(ctx context.Context, it *model.OrderItem) error {
	cur, ok := r.st.items[it.ID]
	if !ok || cur.Version != it.Version {
		return repo.ErrVersionConflict
	}
	cur.Quantity = it.Quantity
	cur.Version++
	cur.UpdatedAt = r.now()
	r.st.items[it.ID] = cur

	it.Version = cur.Version
	it.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *orderItemRepo) Delete(ctx context.Context, itemID int64) error {
	if _, ok := r.st.items[itemID]; !ok {
		return repo.ErrNotFound
	}
	delete(r.st.items, itemID)
	return nil
}

func (r *orderItemRepo) DeleteByOrderID(ctx context.Context, orderID int64) error {
	for id, it := range r.st.items {
		if it.OrderID == orderID {
			delete(r.st.items, id)
		}
	}
	return nil
}

type historyRepo struct {
	st  *state
	now func() time.Time
}

func (r *historyRepo) FindByUserID(ctx context.Context, userID int64) (model.OrderHistory, error) {
	for _, h := range r.st.histories {
		if h.UserID != userID {
			continue
		}
		orders := []model.Order{}
		for _, o := range r.st.orders {
			if o.OrderHistoryID != nil && *o.OrderHistoryID == h.ID {
				orders = append(orders, r.st.withItems(o))
			}
		}
		sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
		h.Orders = orders
		return h, nil
	}
	return model.OrderHistory{}, repo.ErrNotFound
}

func (r *historyRepo) Create(ctx context.Context, h model.OrderHistory) (model.OrderHistory, error) {
	for _, ex := range r.st.histories {
		if ex.UserID == h.UserID {
			return model.OrderHistory{}, repo.ErrUniqueViolation
		}
	}
	h.ID = r.st.nextID()
	h.Version = 0
	h.Orders = nil
	h.CreatedAt = r.now()
	h.UpdatedAt = h.CreatedAt
	r.st.histories[h.ID] = h
	h.Orders = []model.Order{}
	return h, nil
}

func (r *historyRepo) Update(ctx context.Context, h *model.OrderHistory) error {
	cur, ok := r.st.histories[h.ID]
	if !ok || cur.Version != h.Version {
		return repo.ErrVersionConflict
	}
	cur.TotalAmount = h.TotalAmount
	cur.PayedAt = h.PayedAt
	cur.Version++
	cur.UpdatedAt = r.now()
	r.st.histories[h.ID] = cur

	h.Version = cur.Version
	h.UpdatedAt = cur.UpdatedAt
	return nil
}

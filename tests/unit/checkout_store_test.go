package unit

import (
	"context"
	"sort"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// チェックアウトの状態機械はトランザクションをまたいで状態が動くので、
// mockではなくインメモリの偽実装で流れごと検証する。

type memStore struct {
	sessions     map[string]model.CheckoutSession
	sessionItems map[string][]model.CheckoutItem

	products map[int64]model.Product

	carts      map[int64]model.Cart //userID→ACTIVEカート
	cartItems  map[int64][]model.CartItem
	nextCartID int64

	orders       []model.Order
	orderItems   map[int64][]model.OrderItem
	nextOrderID  int64
	transactions []model.Transaction
	adjustments  []model.InventoryAdjustment
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     map[string]model.CheckoutSession{},
		sessionItems: map[string][]model.CheckoutItem{},
		products:     map[int64]model.Product{},
		carts:        map[int64]model.Cart{},
		cartItems:    map[int64][]model.CartItem{},
		nextCartID:   1,
		orderItems:   map[int64][]model.OrderItem{},
		nextOrderID:  1,
	}
}

func (s *memStore) addProduct(p model.Product) {
	s.products[p.ID] = p
}

func (s *memStore) addCartWithItems(userID int64, items ...model.CartItem) model.Cart {
	cart := model.Cart{ID: s.nextCartID, UserID: userID, Status: model.CartStatusActive}
	s.nextCartID++
	s.carts[userID] = cart
	for i := range items {
		items[i].CartID = cart.ID
	}
	s.cartItems[cart.ID] = items
	return cart
}

func (s *memStore) orderByKey(key string) (model.Order, bool) {
	for _, o := range s.orders {
		if o.IdempotencyKey == key {
			return o, true
		}
	}
	return model.Order{}, false
}

// TransactionManager

type memTx struct{ s *memStore }

func (m *memTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(&memTxRepos{s: m.s})
}

type memTxRepos struct{ s *memStore }

func (r *memTxRepos) Orders() repo.OrderRepository                     { return &memOrderRepo{s: r.s} }
func (r *memTxRepos) OrderItems() repo.OrderItemRepository             { return &memOrderItemRepo{s: r.s} }
func (r *memTxRepos) Carts() repo.CartRepository                       { return &memCartRepo{s: r.s} }
func (r *memTxRepos) CartItems() repo.CartItemRepository               { return &memCartItemRepo{s: r.s} }
func (r *memTxRepos) Inventory() repo.InventoryRepository              { return &memInventoryRepo{s: r.s} }
func (r *memTxRepos) Products() repo.ProductRepository                 { return &memProductRepo{s: r.s} }
func (r *memTxRepos) Transactions() repo.TransactionRepository         { return &memTransactionRepo{s: r.s} }
func (r *memTxRepos) CheckoutSessions() repo.CheckoutSessionRepository { return &memSessionRepo{s: r.s} }

// CheckoutSessionRepository

type memSessionRepo struct{ s *memStore }

func (r *memSessionRepo) Create(ctx context.Context, s model.CheckoutSession) error {
	r.s.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) FindByID(ctx context.Context, id string) (model.CheckoutSession, error) {
	s, ok := r.s.sessions[id]
	if !ok {
		return model.CheckoutSession{}, repo.ErrNotFound
	}
	return s, nil
}

func (r *memSessionRepo) FindByIDForUpdate(ctx context.Context, id string) (model.CheckoutSession, error) {
	return r.FindByID(ctx, id)
}

func (r *memSessionRepo) FindOpenByUserID(ctx context.Context, userID int64) (model.CheckoutSession, bool, error) {
	var (
		latest model.CheckoutSession
		found  bool
	)
	for _, s := range r.s.sessions {
		if s.UserID != userID || s.State.Terminal() {
			continue
		}
		if !found || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
			found = true
		}
	}
	return latest, found, nil
}

func (r *memSessionRepo) Save(ctx context.Context, s model.CheckoutSession) error {
	if _, ok := r.s.sessions[s.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) ReplaceItems(ctx context.Context, id string, items []model.CheckoutItem) error {
	cp := make([]model.CheckoutItem, len(items))
	copy(cp, items)
	for i := range cp {
		cp[i].SessionID = id
	}
	r.s.sessionItems[id] = cp
	return nil
}

func (r *memSessionRepo) ListItems(ctx context.Context, id string) ([]model.CheckoutItem, error) {
	return r.s.sessionItems[id], nil
}

// OrderRepository

type memOrderRepo struct{ s *memStore }

func (r *memOrderRepo) FindByID(ctx context.Context, id int64) (model.Order, error) {
	for _, o := range r.s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *memOrderRepo) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) Create(ctx context.Context, o model.Order) (int64, error) {
	if _, found := r.s.orderByKey(o.IdempotencyKey); found {
		return 0, repo.ErrDuplicateOrder
	}
	o.ID = r.s.nextOrderID
	r.s.nextOrderID++
	r.s.orders = append(r.s.orders, o)
	return o.ID, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	for i := range r.s.orders {
		if r.s.orders[i].ID == id {
			r.s.orders[i].Status = status
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *memOrderRepo) FindByIdempotencyKey(ctx context.Context, key string) (model.Order, bool, error) {
	o, found := r.s.orderByKey(key)
	return o, found, nil
}

func (r *memOrderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	return r.s.orders, int64(len(r.s.orders)), nil
}

// OrderItemRepository

type memOrderItemRepo struct{ s *memStore }

func (r *memOrderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	cp := make([]model.OrderItem, len(items))
	copy(cp, items)
	for i := range cp {
		cp[i].OrderID = orderID
	}
	r.s.orderItems[orderID] = cp
	return nil
}

func (r *memOrderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return r.s.orderItems[orderID], nil
}

// CartRepository

type memCartRepo struct{ s *memStore }

func (r *memCartRepo) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	if c, ok := r.s.carts[userID]; ok {
		return c, nil
	}
	c := model.Cart{ID: r.s.nextCartID, UserID: userID, Status: model.CartStatusActive}
	r.s.nextCartID++
	r.s.carts[userID] = c
	return c, nil
}

func (r *memCartRepo) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	c, ok := r.s.carts[userID]
	if !ok || c.Status != model.CartStatusActive {
		return model.Cart{}, repo.ErrNotFound
	}
	return c, nil
}

func (r *memCartRepo) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	for uid, c := range r.s.carts {
		if c.ID == cartID {
			c.Status = status
			r.s.carts[uid] = c
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *memCartRepo) Clear(ctx context.Context, cartID int64) error {
	r.s.cartItems[cartID] = nil
	return nil
}

// CartItemRepository

type memCartItemRepo struct{ s *memStore }

func (r *memCartItemRepo) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	return r.s.cartItems[cartID], nil
}

func (r *memCartItemRepo) UpsertByCartAndProduct(ctx context.Context, cartID int64, item model.CartItem) error {
	items := r.s.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			return nil
		}
	}
	item.CartID = cartID
	r.s.cartItems[cartID] = append(items, item)
	return nil
}

func (r *memCartItemRepo) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	for cartID, items := range r.s.cartItems {
		for i := range items {
			if items[i].ID == cartItemID {
				r.s.cartItems[cartID][i].Quantity = qty
				return nil
			}
		}
	}
	return repo.ErrNotFound
}

func (r *memCartItemRepo) DeleteByID(ctx context.Context, cartItemID int64) error {
	for cartID, items := range r.s.cartItems {
		for i := range items {
			if items[i].ID == cartItemID {
				r.s.cartItems[cartID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return repo.ErrNotFound
}

func (r *memCartItemRepo) DeleteByCartAndProduct(ctx context.Context, cartID int64, productID int64) error {
	items := r.s.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == productID {
			r.s.cartItems[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memCartItemRepo) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	for _, items := range r.s.cartItems {
		for _, it := range items {
			if it.ID == cartItemID {
				return it, nil
			}
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r *memCartItemRepo) FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error) {
	for _, it := range r.s.cartItems[cartID] {
		if it.ProductID == productID {
			return it, nil
		}
	}
	return model.CartItem{}, repo.ErrNotFound
}

func (r *memCartItemRepo) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	c, ok := r.s.carts[userID]
	if !ok {
		return false, nil
	}
	for _, it := range r.s.cartItems[c.ID] {
		if it.ID == cartItemID {
			return true, nil
		}
	}
	return false, nil
}

// InventoryRepository

type memInventoryRepo struct{ s *memStore }

func (r *memInventoryRepo) SetStock(ctx context.Context, productID int64, newStock int64) error {
	p, ok := r.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = newStock
	r.s.products[productID] = p
	return nil
}

func (r *memInventoryRepo) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	p, ok := r.s.products[productID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.products[productID] = p
	return true, nil
}

func (r *memInventoryRepo) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	p, ok := r.s.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.s.products[productID] = p
	return nil
}

func (r *memInventoryRepo) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	r.s.adjustments = append(r.s.adjustments, adj)
	return nil
}

// ProductRepository

type memProductRepo struct{ s *memStore }

func (r *memProductRepo) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var out []model.Product
	for _, p := range r.s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memProductRepo) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *memProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	r.s.products[p.ID] = p
	return p, nil
}

func (r *memProductRepo) Update(ctx context.Context, p model.Product) error {
	if _, ok := r.s.products[p.ID]; !ok {
		return repo.ErrNotFound
	}
	r.s.products[p.ID] = p
	return nil
}

func (r *memProductRepo) SoftDelete(ctx context.Context, id int64) error {
	delete(r.s.products, id)
	return nil
}

// TransactionRepository

type memTransactionRepo struct{ s *memStore }

func (r *memTransactionRepo) Create(ctx context.Context, t model.Transaction) (int64, error) {
	t.ID = int64(len(r.s.transactions) + 1)
	r.s.transactions = append(r.s.transactions, t)
	return t.ID, nil
}

func (r *memTransactionRepo) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Transaction, int64, error) {
	var out []model.Transaction
	for _, t := range r.s.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memTransactionRepo) ListBySessionID(ctx context.Context, sessionID string) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range r.s.transactions {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

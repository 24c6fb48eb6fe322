package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	domain "github.com/openbounty/commerce-api/internal/entity"
	"github.com/openbounty/commerce-api/internal/eventbus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBus(t interface{ Fatalf(string, ...any) }) *eventbus.Bus {
	bus, err := eventbus.New(eventbus.NewInlineBackend(), eventbus.NopLog{}, testLogger())
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	return bus
}

// memLedger mirrors the store contract: Mutate is one locked
// read-validate-write-append unit of work.
type memLedger struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	txs      map[string][]domain.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: map[string]*domain.Account{},
		txs:      map[string][]domain.Transaction{},
	}
}

func (m *memLedger) addAccount(id string, kind domain.AccountKind, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = &domain.Account{ID: id, OwnerID: "owner-" + id, Kind: kind, Balance: balance}
}

func (m *memLedger) Account(_ context.Context, id string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memLedger) Transactions(_ context.Context, accountID string) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, len(m.txs[accountID]))
	copy(out, m.txs[accountID])
	return out, nil
}

func (m *memLedger) HasExternalRef(_ context.Context, accountID, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.txs[accountID] {
		if tx.ExternalRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) Mutate(_ context.Context, accountID string, fn func(acc *domain.Account) (domain.Transaction, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *acc
	entry, err := fn(&cp)
	if err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ExternalRef != "" {
		for _, tx := range m.txs[accountID] {
			if tx.ExternalRef == entry.ExternalRef {
				return nil
			}
		}
	}
	newBalance := acc.Balance + entry.Signed()
	if newBalance < 0 {
		return fmt.Errorf("%w: balance would go negative", domain.ErrInsufficientFunds)
	}
	acc.Balance = newBalance
	m.txs[accountID] = append(m.txs[accountID], entry)
	return nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newMemCarts() *memCarts { return &memCarts{carts: map[string]*domain.Cart{}} }

func (m *memCarts) Create(_ context.Context, c *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.carts[c.ID] = &cp
	return nil
}

func (m *memCarts) Get(_ context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	cp.Items = append([]domain.LineItem(nil), c.Items...)
	return &cp, nil
}

func (m *memCarts) GetOpenByOrganisation(_ context.Context, orgID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.carts {
		if c.OrganisationID == orgID && c.Status == domain.CartOpen {
			cp := *c
			cp.Items = append([]domain.LineItem(nil), c.Items...)
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCarts) WithCart(_ context.Context, id string, fn func(c *domain.Cart) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return domain.ErrNotFound
	}
	return fn(c)
}

func (m *memCarts) UpdateStatusIf(_ context.Context, id string, from, to domain.CartStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.SalesOrder
	byCart map[string]string
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[string]*domain.SalesOrder{}, byCart: map[string]string{}}
}

func (m *memOrders) Create(_ context.Context, o *domain.SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCart[o.CartID]; ok {
		return domain.ErrOrderExists
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.byCart[o.CartID] = o.ID
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*domain.SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	cp.Items = append([]domain.LineItem(nil), o.Items...)
	return &cp, nil
}

func (m *memOrders) GetByCart(_ context.Context, cartID string) (*domain.SalesOrder, error) {
	m.mu.Lock()
	id, ok := m.byCart[cartID]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.Get(context.Background(), id)
}

func (m *memOrders) UpdateStatusIf(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type memPointOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.PointOrder
	byCart map[string]string
}

func newMemPointOrders() *memPointOrders {
	return &memPointOrders{orders: map[string]*domain.PointOrder{}, byCart: map[string]string{}}
}

func (m *memPointOrders) Create(_ context.Context, o *domain.PointOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCart[o.CartID]; ok {
		return domain.ErrOrderExists
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.byCart[o.CartID] = o.ID
	return nil
}

func (m *memPointOrders) Get(_ context.Context, id string) (*domain.PointOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	cp.Items = append([]domain.LineItem(nil), o.Items...)
	return &cp, nil
}

func (m *memPointOrders) UpdateStatusIf(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type stubDirectory struct {
	accounts map[string]string // ownerID+"/"+kind -> accountID
}

func (d *stubDirectory) AccountFor(_ context.Context, ownerID string, kind domain.AccountKind) (string, error) {
	id, ok := d.accounts[ownerID+"/"+string(kind)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

type memIdem struct {
	mu     sync.Mutex
	locked map[string]bool
	values map[string]string
}

func newMemIdem() *memIdem {
	return &memIdem{locked: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + "/" + key
	if m.locked[k] {
		return false, nil
	}
	m.locked[k] = true
	return true, nil
}

func (m *memIdem) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+"/"+key] = value
	return nil
}

func (m *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+"/"+key]
	return v, ok, nil
}

type memBounties struct {
	mu      sync.Mutex
	created map[string]string // orderItemID -> bountyID
	failOn  map[string]error  // orderItemID -> forced error
}

func newMemBounties() *memBounties {
	return &memBounties{created: map[string]string{}, failOn: map[string]error{}}
}

func (m *memBounties) ExistsForOrderItem(_ context.Context, orderItemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.created[orderItemID]
	return ok, nil
}

func (m *memBounties) CreateFromOrderItem(_ context.Context, orderID string, item domain.LineItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[item.ID]; err != nil {
		return "", err
	}
	id := "bounty-for-" + item.ID
	m.created[item.ID] = id
	return id, nil
}

type memGrants struct {
	mu       sync.Mutex
	requests map[string]*domain.GrantRequest
	grants   map[string]*domain.PointGrant // keyed by order item id
	statuses map[string]domain.GrantRequestStatus
	failOn   map[string]error // orderItemID -> forced CreateGrant error
}

func newMemGrants() *memGrants {
	return &memGrants{
		requests: map[string]*domain.GrantRequest{},
		grants:   map[string]*domain.PointGrant{},
		statuses: map[string]domain.GrantRequestStatus{},
		failOn:   map[string]error{},
	}
}

func (m *memGrants) addRequest(req *domain.GrantRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req
}

func (m *memGrants) Request(_ context.Context, id string) (*domain.GrantRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *memGrants) CreateGrant(_ context.Context, g *domain.PointGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn[g.OrderItemID]; err != nil {
		return err
	}
	if _, ok := m.grants[g.OrderItemID]; ok {
		return nil
	}
	cp := *g
	m.grants[g.OrderItemID] = &cp
	return nil
}

func (m *memGrants) GrantExistsForOrderItem(_ context.Context, orderItemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.grants[orderItemID]
	return ok, nil
}

func (m *memGrants) UpdateRequestStatus(_ context.Context, id string, status domain.GrantRequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[id]; !ok {
		return domain.ErrNotFound
	}
	m.statuses[id] = status
	return nil
}

type stubFees struct {
	cfg *domain.FeeConfig
	err error
}

func (s *stubFees) ActiveConfig(_ context.Context, at time.Time) (*domain.FeeConfig, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.cfg == nil || s.cfg.AppliesFrom.After(at) {
		return nil, domain.ErrNotFound
	}
	return s.cfg, nil
}

type stubTaxes struct {
	rates map[string]int64
}

func (s *stubTaxes) RateBps(_ context.Context, countryCode string) (int64, bool, error) {
	bps, ok := s.rates[countryCode]
	return bps, ok, nil
}

type memRateCache struct {
	mu   sync.Mutex
	vals map[string]int64
	sets int
}

func newMemRateCache() *memRateCache { return &memRateCache{vals: map[string]int64{}} }

func (m *memRateCache) Get(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *memRateCache) Set(_ context.Context, key string, v int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = v
	m.sets++
	return nil
}

package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// Ledger is an in-memory store shared by the fake repositories.
// Writes made through a FakeTx are undone when it rolls back.
type Ledger struct {
	mu         sync.Mutex
	seq        int64
	users      map[int64]*domain.User
	txs        []*domain.Transaction
	orders     map[int64]*domain.StandingOrder
	tags       map[int64]*domain.Tag
	agents     map[int64]*domain.Agent
	orderLocks map[int64]*sync.Mutex
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		users:      make(map[int64]*domain.User),
		orders:     make(map[int64]*domain.StandingOrder),
		tags:       make(map[int64]*domain.Tag),
		agents:     make(map[int64]*domain.Agent),
		orderLocks: make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) nextID() int64 {
	l.seq++
	return l.seq
}

// AddUser inserts an active user and returns it.
func (l *Ledger) AddUser(name string) *domain.User {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := &domain.User{ID: l.nextID(), Name: name, Active: true, CreatedAt: time.Now().UTC()}
	l.users[u.ID] = u

	cp := *u

	return &cp
}

// Insert stores a transaction as is, bypassing every check. Tests use it
// to plant corrupted rows.
func (l *Ledger) Insert(t domain.Transaction) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	t.ID = l.nextID()
	l.txs = append(l.txs, &t)

	return t.ID
}

// Transactions returns copies of all transactions in id order.
func (l *Ledger) Transactions() []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Transaction, 0, len(l.txs))
	for _, t := range l.txs {
		out = append(out, *t)
	}

	return out
}

// SetOrderPointers overwrites the pointers of an order, bypassing locks.
func (l *Ledger) SetOrderPointers(id int64, next, cutoff *time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if o, ok := l.orders[id]; ok {
		o.NextDueAt = next
		o.CutoffAt = cutoff
	}
}

// SetOrderRule overwrites the stored rule text of an order.
func (l *Ledger) SetOrderRule(id int64, rule string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if o, ok := l.orders[id]; ok {
		o.Rule = rule
	}
}

func (l *Ledger) userByName(name string) *domain.User {
	for _, u := range l.users {
		if u.Name == name {
			return u
		}
	}

	return nil
}

func (l *Ledger) orderLock(id int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.orderLocks[id]
	if !ok {
		m = &sync.Mutex{}
		l.orderLocks[id] = m
	}

	return m
}

// onUndo registers fn to run on rollback of tx. Must be called with l.mu held.
func onUndo(tx usecase.Transaction, fn func()) {
	if ftx, ok := tx.(*FakeTx); ok && ftx != nil {
		ftx.undo = append(ftx.undo, fn)
	}
}

// FakeTxManager hands out FakeTx values over a Ledger.
type FakeTxManager struct {
	ledger *Ledger

	mu         sync.Mutex
	BeginErr   error
	CommitErr  error
	Begun      int
	Committed  int
	RolledBack int
	Snapshots  int
}

// NewFakeTxManager creates a FakeTxManager over l.
func NewFakeTxManager(l *Ledger) *FakeTxManager {
	return &FakeTxManager{ledger: l}
}

// Begin starts a fake read-write transaction.
func (m *FakeTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BeginErr != nil {
		return nil, m.BeginErr
	}

	m.Begun++

	return &FakeTx{manager: m, commitErr: m.CommitErr}, nil
}

// BeginSnapshot starts a fake read-only transaction.
func (m *FakeTxManager) BeginSnapshot(ctx context.Context) (usecase.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.BeginErr != nil {
		return nil, m.BeginErr
	}

	m.Snapshots++

	return &FakeTx{manager: m}, nil
}

// FakeTx is a transaction over a Ledger with undo on rollback.
type FakeTx struct {
	manager   *FakeTxManager
	undo      []func()
	release   []func()
	commitErr error
	done      bool
}

// Commit makes the writes permanent and releases held locks.
func (t *FakeTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}

	if t.commitErr != nil {
		t.rollback()
		return t.commitErr
	}

	t.done = true
	t.undo = nil
	t.releaseLocks()

	t.manager.mu.Lock()
	t.manager.Committed++
	t.manager.mu.Unlock()

	return nil
}

// Rollback undoes the writes. Rolling back a closed transaction is a no-op.
func (t *FakeTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}

	t.rollback()

	return nil
}

func (t *FakeTx) rollback() {
	l := t.manager.ledger

	l.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	l.mu.Unlock()

	t.done = true
	t.undo = nil
	t.releaseLocks()

	t.manager.mu.Lock()
	t.manager.RolledBack++
	t.manager.mu.Unlock()
}

func (t *FakeTx) releaseLocks() {
	for _, fn := range t.release {
		fn()
	}

	t.release = nil
}

// FakeUserRepository implements usecase.UserRepository over a Ledger.
type FakeUserRepository struct {
	ledger *Ledger

	GetByNameFunc func(ctx context.Context, tx usecase.Transaction, name string) (*domain.User, error)
}

// NewFakeUserRepository creates a FakeUserRepository over l.
func NewFakeUserRepository(l *Ledger) *FakeUserRepository {
	return &FakeUserRepository{ledger: l}
}

func (r *FakeUserRepository) Create(ctx context.Context, user *domain.User) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.userByName(user.Name) != nil {
		return domain.ErrUserExists
	}

	user.ID = l.nextID()
	cp := *user
	l.users[user.ID] = &cp

	return nil
}

func (r *FakeUserRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.User, error) {
	if r.GetByNameFunc != nil {
		return r.GetByNameFunc(ctx, tx, name)
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.userByName(name)
	if u == nil {
		return nil, domain.ErrUserNotFound
	}

	cp := *u

	return &cp, nil
}

func (r *FakeUserRepository) List(ctx context.Context, tx usecase.Transaction) ([]*domain.User, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	users := make([]*domain.User, 0, len(l.users))
	for _, u := range l.users {
		cp := *u
		users = append(users, &cp)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	return users, nil
}

func (r *FakeUserRepository) Deactivate(ctx context.Context, name string) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.userByName(name)
	if u == nil {
		return domain.ErrUserNotFound
	}

	u.Active = false

	return nil
}

// FakeTransactionRepository implements usecase.TransactionRepository over a Ledger.
type FakeTransactionRepository struct {
	ledger *Ledger

	CreateFunc func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error
	ScanErr    error
}

// NewFakeTransactionRepository creates a FakeTransactionRepository over l.
func NewFakeTransactionRepository(l *Ledger) *FakeTransactionRepository {
	return &FakeTransactionRepository{ledger: l}
}

// Create enforces the same guards as the database schema.
func (r *FakeTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	if r.CreateFunc != nil {
		if err := r.CreateFunc(ctx, tx, t); err != nil {
			return err
		}
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.users[t.FromUserID]; !ok {
		return domain.ErrUserNotFound
	}

	if _, ok := l.users[t.ToUserID]; !ok {
		return domain.ErrUserNotFound
	}

	if t.FromUserID == t.ToUserID || t.Amount.IsNegative() || t.DueAt.After(t.CreatedAt) {
		return fmt.Errorf("check constraint violated by transaction")
	}

	t.ID = l.nextID()
	cp := *t
	cp.TagIDs = append([]int64(nil), t.TagIDs...)
	l.txs = append(l.txs, &cp)

	id := t.ID
	onUndo(tx, func() {
		for i, stored := range l.txs {
			if stored.ID == id {
				l.txs = append(l.txs[:i], l.txs[i+1:]...)
				return
			}
		}
	})

	return nil
}

func (r *FakeTransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.txs {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}

	return nil, domain.ErrTransactionNotFound
}

func (r *FakeTransactionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Transaction

	for i := len(l.txs) - 1; i >= 0; i-- {
		t := l.txs[i]
		if t.FromUserID != userID && t.ToUserID != userID {
			continue
		}

		if offset > 0 {
			offset--
			continue
		}

		if len(out) == limit {
			break
		}

		cp := *t
		out = append(out, &cp)
	}

	return out, nil
}

func (r *FakeTransactionRepository) ListByOrder(ctx context.Context, tx usecase.Transaction, orderID int64) ([]*domain.Transaction, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.Transaction

	for _, t := range l.txs {
		if t.StandingOrderID != nil && *t.StandingOrderID == orderID {
			cp := *t
			out = append(out, &cp)
		}
	}

	return out, nil
}

func (r *FakeTransactionRepository) CountByOrder(ctx context.Context, tx usecase.Transaction, orderID int64) (int, error) {
	txs, err := r.ListByOrder(ctx, tx, orderID)
	return len(txs), err
}

func (r *FakeTransactionRepository) Scan(ctx context.Context, tx usecase.Transaction, fn func(*domain.Transaction) error) error {
	if r.ScanErr != nil {
		return r.ScanErr
	}

	for _, t := range r.ledger.Transactions() {
		cp := t
		if err := fn(&cp); err != nil {
			return err
		}
	}

	return nil
}

// FakeOrderRepository implements usecase.OrderRepository over a Ledger.
// GetByIDForUpdate holds a per-order mutex until the transaction ends.
type FakeOrderRepository struct {
	ledger *Ledger

	ListDueErr error
}

// NewFakeOrderRepository creates a FakeOrderRepository over l.
func NewFakeOrderRepository(l *Ledger) *FakeOrderRepository {
	return &FakeOrderRepository{ledger: l}
}

func (r *FakeOrderRepository) Create(ctx context.Context, order *domain.StandingOrder) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range l.orders {
		if o.Name == order.Name {
			return domain.ErrOrderExists
		}
	}

	order.ID = l.nextID()
	cp := *order
	l.orders[order.ID] = &cp

	return nil
}

func (r *FakeOrderRepository) copyOf(o *domain.StandingOrder) *domain.StandingOrder {
	cp := *o
	if u, ok := r.ledger.users[o.FromUserID]; ok {
		cp.FromUser = u.Name
	}

	if u, ok := r.ledger.users[o.ToUserID]; ok {
		cp.ToUser = u.Name
	}

	return &cp
}

func (r *FakeOrderRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.StandingOrder, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range l.orders {
		if o.Name == name {
			return r.copyOf(o), nil
		}
	}

	return nil, domain.ErrOrderNotFound
}

func (r *FakeOrderRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.StandingOrder, error) {
	lock := r.ledger.orderLock(id)
	lock.Lock()

	if ftx, ok := tx.(*FakeTx); ok && ftx != nil {
		ftx.release = append(ftx.release, lock.Unlock)
	} else {
		defer lock.Unlock()
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	return r.copyOf(o), nil
}

func (r *FakeOrderRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error) {
	if r.ListDueErr != nil {
		return nil, r.ListDueErr
	}

	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*domain.StandingOrder

	for _, o := range l.orders {
		if o.IsDue(asOf) {
			out = append(out, r.copyOf(o))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *FakeOrderRepository) List(ctx context.Context, tx usecase.Transaction) ([]*domain.StandingOrder, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.StandingOrder, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, r.copyOf(o))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (r *FakeOrderRepository) UpdatePointers(ctx context.Context, tx usecase.Transaction, id int64, next, cutoff *time.Time) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}

	prevNext, prevCutoff := o.NextDueAt, o.CutoffAt
	o.NextDueAt, o.CutoffAt = next, cutoff

	onUndo(tx, func() {
		o.NextDueAt, o.CutoffAt = prevNext, prevCutoff
	})

	return nil
}

func (r *FakeOrderRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}

	delete(l.orders, id)

	onUndo(tx, func() {
		l.orders[id] = o
	})

	return nil
}

// FakeTagRepository implements usecase.TagRepository over a Ledger.
type FakeTagRepository struct {
	ledger *Ledger
}

// NewFakeTagRepository creates a FakeTagRepository over l.
func NewFakeTagRepository(l *Ledger) *FakeTagRepository {
	return &FakeTagRepository{ledger: l}
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}

func (r *FakeTagRepository) Create(ctx context.Context, tx usecase.Transaction, tag *domain.Tag) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tags {
		if t.Name == tag.Name && sameParent(t.ParentID, tag.ParentID) {
			return domain.ErrTagExists
		}
	}

	tag.ID = l.nextID()
	cp := *tag
	l.tags[tag.ID] = &cp

	id := tag.ID
	onUndo(tx, func() { delete(l.tags, id) })

	return nil
}

func (r *FakeTagRepository) GetChild(ctx context.Context, tx usecase.Transaction, parentID *int64, name string) (*domain.Tag, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tags {
		if t.Name == name && sameParent(t.ParentID, parentID) {
			cp := *t
			return &cp, nil
		}
	}

	return nil, domain.ErrTagNotFound
}

func (r *FakeTagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Tag, 0, len(l.tags))
	for _, t := range l.tags {
		cp := *t
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// FakeAgentRepository implements usecase.AgentRepository over a Ledger.
type FakeAgentRepository struct {
	ledger *Ledger
}

// NewFakeAgentRepository creates a FakeAgentRepository over l.
func NewFakeAgentRepository(l *Ledger) *FakeAgentRepository {
	return &FakeAgentRepository{ledger: l}
}

func (r *FakeAgentRepository) Create(ctx context.Context, tx usecase.Transaction, agent *domain.Agent) error {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.agents {
		if a.Name == agent.Name {
			return domain.ErrAgentExists
		}
	}

	agent.ID = l.nextID()
	cp := *agent
	l.agents[agent.ID] = &cp

	id := agent.ID
	onUndo(tx, func() { delete(l.agents, id) })

	return nil
}

func (r *FakeAgentRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.Agent, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.agents {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}

	return nil, domain.ErrAgentNotFound
}

func (r *FakeAgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*domain.Agent, 0, len(l.agents))
	for _, a := range l.agents {
		cp := *a
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// FakeLedgerRepository implements usecase.LedgerRepository over a Ledger.
type FakeLedgerRepository struct {
	ledger *Ledger
}

// NewFakeLedgerRepository creates a FakeLedgerRepository over l.
func NewFakeLedgerRepository(l *Ledger) *FakeLedgerRepository {
	return &FakeLedgerRepository{ledger: l}
}

// Balances mirrors the aggregate query: every side of every transaction
// is summed for users that exist.
func (r *FakeLedgerRepository) Balances(ctx context.Context, tx usecase.Transaction) ([]domain.UserBalance, error) {
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	sums := make(map[int64]decimal.Decimal, len(l.users))
	for _, t := range l.txs {
		sums[t.ToUserID] = sums[t.ToUserID].Add(t.Amount)
		sums[t.FromUserID] = sums[t.FromUserID].Sub(t.Amount)
	}

	out := make([]domain.UserBalance, 0, len(l.users))
	for _, u := range l.users {
		out = append(out, domain.UserBalance{UserID: u.ID, Name: u.Name, Balance: sums[u.ID]})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

func (r *FakeLedgerRepository) Balance(ctx context.Context, tx usecase.Transaction, userID int64) (decimal.Decimal, error) {
	balances, err := r.Balances(ctx, tx)
	if err != nil {
		return decimal.Zero, err
	}

	for _, b := range balances {
		if b.UserID == userID {
			return b.Balance, nil
		}
	}

	return decimal.Zero, domain.ErrUserNotFound
}

// FakeRetrier re-runs operations failing with a concurrency conflict.
type FakeRetrier struct {
	MaxAttempts int
	attempts    atomic.Int64
}

func (r *FakeRetrier) Retry(ctx context.Context, operation func() error) error {
	max := r.MaxAttempts
	if max <= 0 {
		max = 3
	}

	var err error

	for i := 0; i < max; i++ {
		r.attempts.Add(1)

		err = operation()
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
	}

	return err
}

// Attempts returns how many times operations were started.
func (r *FakeRetrier) Attempts() int {
	return int(r.attempts.Load())
}

// SequenceIDGenerator returns run-1, run-2, ...
type SequenceIDGenerator struct {
	mu sync.Mutex
	n  int
}

func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++

	return fmt.Sprintf("run-%d", g.n)
}

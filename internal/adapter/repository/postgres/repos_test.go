package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
)

var (
	testTime            = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	transactionColNames = []string{
		"id", "from_user_id", "to_user_id", "amount", "original_amount", "original_currency",
		"note", "agent_id", "standing_order_id", "due_at", "created_at", "created_by_id", "tag_ids",
	}
	orderColNames = []string{
		"id", "name", "from_user_id", "from_name", "to_user_id", "to_name",
		"amount", "note", "rrule", "next_due_at", "cutoff_at", "created_at",
	}
)

func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) *Tx {
	t.Helper()

	pool.ExpectBegin()

	ptx, err := pool.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	return &Tx{tx: ptx}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization", &pgconn.PgError{Code: pgErrSerializationFailure}, domain.ErrConcurrencyConflict},
		{"deadlock", &pgconn.PgError{Code: pgErrDeadlock}, domain.ErrConcurrencyConflict},
		{"lock timeout", &pgconn.PgError{Code: pgErrLockNotAvailable}, domain.ErrConcurrencyConflict},
		{"check", &pgconn.PgError{Code: pgErrCheckViolation, Message: "amount"}, domain.ErrValidation},
		{"foreign key", &pgconn.PgError{Code: pgErrForeignKeyViolation}, domain.ErrValidation},
		{"trigger", &pgconn.PgError{Code: pgErrRaiseException, Message: "transactions are immutable"}, domain.ErrValidation},
		{"connect", &pgconn.ConnectError{}, domain.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mapError(tt.err); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if mapError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}

	plain := errors.New("plain")
	if !errors.Is(mapError(plain), plain) {
		t.Fatal("expected unmapped error to pass through")
	}
}

func TestDecimalNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "12.5", "-3.14", "99999999999999.99"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}

	if numericToNullable(nullableNumeric(nil)) != nil {
		t.Fatal("expected nil decimal for NULL numeric")
	}
}

func TestUserRepositoryCreate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewUserRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", true, testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	user := &domain.User{Name: "alice", Active: true, CreatedAt: testTime}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create: %v", err)
	}

	if user.ID != 7 {
		t.Fatalf("expected id 7, got %d", user.ID)
	}

	assertExpectations(t, pool)
}

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewUserRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", true, testTime).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), &domain.User{Name: "alice", Active: true, CreatedAt: testTime})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUserRepositoryGetByName(t *testing.T) {
	pool := newMockPool(t)
	repo := NewUserRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE name = $1")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active", "created_at"}).
			AddRow(int64(1), "alice", true, testTime))

	user, err := repo.GetByName(context.Background(), nil, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if user.ID != 1 || user.Name != "alice" || !user.Active {
		t.Fatalf("unexpected user %+v", user)
	}

	pool.ExpectQuery(regexp.QuoteMeta("FROM users WHERE name = $1")).
		WithArgs("bob").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active", "created_at"}))

	if _, err := repo.GetByName(context.Background(), nil, "bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestUserRepositoryListAndDeactivate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewUserRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY name")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active", "created_at"}).
			AddRow(int64(1), "alice", true, testTime).
			AddRow(int64(2), "bob", false, testTime))

	users, err := repo.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(users) != 2 || users[1].Active {
		t.Fatalf("unexpected users %+v", users)
	}

	pool.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE")).
		WithArgs("bob").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE")).
		WithArgs("zed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Deactivate(context.Background(), "bob"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if err := repo.Deactivate(context.Background(), "zed"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestTransactionRepositoryCreateWithTags(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)
	tx := beginTx(t, pool)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(
			int64(1), int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), testTime, testTime, int64(1),
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_tags")).
		WithArgs(int64(42), []int64{3, 4}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	txn := &domain.Transaction{
		FromUserID:  1,
		ToUserID:    2,
		CreatedByID: 1,
		Amount:      decimal.RequireFromString("12.5"),
		DueAt:       testTime,
		CreatedAt:   testTime,
		TagIDs:      []int64{3, 4},
	}

	if err := repo.Create(context.Background(), tx, txn); err != nil {
		t.Fatalf("create: %v", err)
	}

	if txn.ID != 42 {
		t.Fatalf("expected id 42, got %d", txn.ID)
	}

	assertExpectations(t, pool)
}

func TestTransactionRepositoryCreateRejected(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: pgErrCheckViolation, Message: "transactions_distinct_users"})

	err := repo.Create(context.Background(), nil, &domain.Transaction{FromUserID: 1, ToUserID: 1})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestTransactionRepositoryGetByID(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)

	orderID := int64(9)
	currency := "EUR"

	pool.ExpectQuery(regexp.QuoteMeta("FROM transactions t WHERE t.id = $1")).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(transactionColNames).AddRow(
			int64(42), int64(1), int64(2), "12.5", "11", &currency,
			nil, nil, &orderID, testTime, testTime, int64(1), []int64{3},
		))

	txn, err := repo.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if !txn.Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected amount %s", txn.Amount)
	}

	if txn.OriginalAmount == nil || !txn.OriginalAmount.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("unexpected original amount %v", txn.OriginalAmount)
	}

	if txn.StandingOrderID == nil || *txn.StandingOrderID != 9 {
		t.Fatalf("unexpected order id %v", txn.StandingOrderID)
	}

	if txn.Note != nil || txn.AgentID != nil {
		t.Fatalf("expected NULL note and agent, got %+v", txn)
	}

	if len(txn.TagIDs) != 1 || txn.TagIDs[0] != 3 {
		t.Fatalf("unexpected tags %v", txn.TagIDs)
	}

	pool.ExpectQuery(regexp.QuoteMeta("FROM transactions t WHERE t.id = $1")).
		WithArgs(int64(43)).
		WillReturnRows(pgxmock.NewRows(transactionColNames))

	if _, err := repo.GetByID(context.Background(), 43); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestTransactionRepositoryListByUser(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("ORDER BY t.id DESC")).
		WithArgs(int64(1), 10, 0).
		WillReturnRows(pgxmock.NewRows(transactionColNames).
			AddRow(int64(2), int64(2), int64(1), "1", nil, nil, nil, nil, nil, testTime, testTime, int64(2), []int64{}).
			AddRow(int64(1), int64(1), int64(2), "3", nil, nil, nil, nil, nil, testTime, testTime, int64(1), []int64{}))

	txs, err := repo.ListByUser(context.Background(), 1, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(txs) != 2 || txs[0].ID != 2 {
		t.Fatalf("unexpected transactions %+v", txs)
	}

	assertExpectations(t, pool)
}

func TestTransactionRepositoryScanStopsOnCallbackError(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("FROM transactions t ORDER BY t.id")).
		WillReturnRows(pgxmock.NewRows(transactionColNames).
			AddRow(int64(1), int64(1), int64(2), "1", nil, nil, nil, nil, nil, testTime, testTime, int64(1), []int64{}).
			AddRow(int64(2), int64(2), int64(1), "1", nil, nil, nil, nil, nil, testTime, testTime, int64(2), []int64{}))

	stop := errors.New("stop")
	seen := 0

	err := repo.Scan(context.Background(), nil, func(*domain.Transaction) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}

	if seen != 1 {
		t.Fatalf("expected scan to stop after 1 row, saw %d", seen)
	}
}

func TestTransactionRepositoryCountByOrder(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTransactionRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM transactions")).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByOrder(context.Background(), nil, 9)
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	if count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
}

func TestOrderRepositoryGetByIDForUpdate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOrderRepository(pool)
	tx := beginTx(t, pool)

	next := testTime.Add(24 * time.Hour)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE o.id = $1 FOR UPDATE OF o")).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(orderColNames).AddRow(
			int64(5), "rent", int64(1), "alice", int64(2), "bob",
			"100", nil, "DTSTART:20250310T090000Z\nRRULE:FREQ=DAILY", &next, nil, testTime,
		))

	order, err := repo.GetByIDForUpdate(context.Background(), tx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if order.FromUser != "alice" || order.ToUser != "bob" {
		t.Fatalf("unexpected parties %s -> %s", order.FromUser, order.ToUser)
	}

	if order.State() != domain.OrderPending || !order.NextDueAt.Equal(next) {
		t.Fatalf("unexpected pointers %+v", order)
	}

	pool.ExpectQuery(regexp.QuoteMeta("WHERE o.id = $1 FOR UPDATE OF o")).
		WithArgs(int64(6)).
		WillReturnError(&pgconn.PgError{Code: pgErrLockNotAvailable})

	if _, err := repo.GetByIDForUpdate(context.Background(), tx, 6); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestOrderRepositoryCreateDuplicate(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOrderRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO standing_orders")).
		WithArgs(
			"rent", int64(1), int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"RRULE", pgxmock.AnyArg(), pgxmock.AnyArg(), testTime,
		).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), &domain.StandingOrder{
		Name: "rent", FromUserID: 1, ToUserID: 2, Amount: decimal.NewFromInt(1), Rule: "RRULE", CreatedAt: testTime,
	})
	if !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists, got %v", err)
	}
}

func TestOrderRepositoryListDue(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOrderRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE o.next_due_at <= $1 ORDER BY o.id")).
		WithArgs(testTime).
		WillReturnRows(pgxmock.NewRows(orderColNames).
			AddRow(int64(1), "a", int64(1), "alice", int64(2), "bob", "1", nil, "r", &testTime, nil, testTime).
			AddRow(int64(2), "b", int64(2), "bob", int64(1), "alice", "2", nil, "r", &testTime, nil, testTime))

	orders, err := repo.ListDue(context.Background(), testTime)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}

	if len(orders) != 2 || orders[1].FromUser != "bob" {
		t.Fatalf("unexpected orders %+v", orders)
	}

	assertExpectations(t, pool)
}

func TestOrderRepositoryUpdatePointers(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOrderRepository(pool)
	tx := beginTx(t, pool)

	next := testTime

	pool.ExpectExec(regexp.QuoteMeta("UPDATE standing_orders SET next_due_at = $2, cutoff_at = $3")).
		WithArgs(int64(5), &next, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	pool.ExpectExec(regexp.QuoteMeta("UPDATE standing_orders")).
		WithArgs(int64(6), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdatePointers(context.Background(), tx, 5, &next, nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := repo.UpdatePointers(context.Background(), tx, 6, nil, nil); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

func TestOrderRepositoryDeleteReferenced(t *testing.T) {
	pool := newMockPool(t)
	repo := NewOrderRepository(pool)

	pool.ExpectExec(regexp.QuoteMeta("DELETE FROM standing_orders")).
		WithArgs(int64(5)).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation, Message: "still referenced"})

	if err := repo.Delete(context.Background(), nil, 5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTagRepository(t *testing.T) {
	pool := newMockPool(t)
	repo := NewTagRepository(pool)

	parent := int64(1)
	desc := "eating out"

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO tags")).
		WithArgs(&parent, "restaurants", &desc, testTime).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))

	tag := &domain.Tag{ParentID: &parent, Name: "restaurants", Description: &desc, CreatedAt: testTime}
	if err := repo.Create(context.Background(), nil, tag); err != nil {
		t.Fatalf("create: %v", err)
	}

	if tag.ID != 2 {
		t.Fatalf("expected id 2, got %d", tag.ID)
	}

	pool.ExpectQuery(regexp.QuoteMeta("parent_id IS NOT DISTINCT FROM $1")).
		WithArgs(pgxmock.AnyArg(), "food").
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name", "description", "created_at"}).
			AddRow(int64(1), nil, "food", nil, testTime))

	root, err := repo.GetChild(context.Background(), nil, nil, "food")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}

	if root.ID != 1 || root.ParentID != nil {
		t.Fatalf("unexpected tag %+v", root)
	}

	pool.ExpectQuery(regexp.QuoteMeta("parent_id IS NOT DISTINCT FROM $1")).
		WithArgs(pgxmock.AnyArg(), "drinks").
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name", "description", "created_at"}))

	if _, err := repo.GetChild(context.Background(), nil, nil, "drinks"); !errors.Is(err, domain.ErrTagNotFound) {
		t.Fatalf("expected ErrTagNotFound, got %v", err)
	}

	pool.ExpectQuery(regexp.QuoteMeta("FROM tags ORDER BY id")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name", "description", "created_at"}).
			AddRow(int64(1), nil, "food", nil, testTime).
			AddRow(int64(2), &parent, "restaurants", &desc, testTime))

	tags, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(tags) != 2 || *tags[1].ParentID != 1 {
		t.Fatalf("unexpected tags %+v", tags)
	}

	if tags[0].Description != nil || tags[1].Description == nil || *tags[1].Description != desc {
		t.Fatalf("unexpected descriptions %v, %v", tags[0].Description, tags[1].Description)
	}

	assertExpectations(t, pool)
}

func TestAgentRepository(t *testing.T) {
	pool := newMockPool(t)
	repo := NewAgentRepository(pool)
	account := "checking account"

	pool.ExpectQuery(regexp.QuoteMeta("INSERT INTO agents")).
		WithArgs("bank", (*string)(nil), testTime).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), nil, &domain.Agent{Name: "bank", CreatedAt: testTime})
	if !errors.Is(err, domain.ErrAgentExists) {
		t.Fatalf("expected ErrAgentExists, got %v", err)
	}

	pool.ExpectQuery(regexp.QuoteMeta("FROM agents WHERE name = $1")).
		WithArgs("bank").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "created_at"}).
			AddRow(int64(3), "bank", &account, testTime))

	agent, err := repo.GetByName(context.Background(), nil, "bank")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if agent.ID != 3 || agent.Description == nil || *agent.Description != account {
		t.Fatalf("unexpected agent %+v", agent)
	}

	assertExpectations(t, pool)
}

func TestLedgerRepositoryBalances(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)
	tx := beginTx(t, pool)

	pool.ExpectQuery(regexp.QuoteMeta("GROUP BY u.id, u.name ORDER BY u.name")).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "balance"}).
			AddRow(int64(1), "alice", "-12.5").
			AddRow(int64(2), "bob", "12.5").
			AddRow(int64(3), "carol", "0"))

	balances, err := repo.Balances(context.Background(), tx)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}

	if len(balances) != 3 {
		t.Fatalf("expected 3 balances, got %d", len(balances))
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}

	if !total.IsZero() {
		t.Fatalf("expected zero total, got %s", total)
	}

	if !balances[0].Balance.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("unexpected alice balance %s", balances[0].Balance)
	}

	assertExpectations(t, pool)
}

func TestLedgerRepositoryBalance(t *testing.T) {
	pool := newMockPool(t)
	repo := NewLedgerRepository(pool)

	pool.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "balance"}).AddRow(int64(2), "bob", "7"))
	pool.ExpectQuery(regexp.QuoteMeta("WHERE u.id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "balance"}))

	balance, err := repo.Balance(context.Background(), nil, 2)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	if !balance.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7, got %s", balance)
	}

	if _, err := repo.Balance(context.Background(), nil, 9); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	assertExpectations(t, pool)
}

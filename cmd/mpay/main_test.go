package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/infrastructure/clock"
	"github.com/iho/mpay/internal/infrastructure/config"
	"github.com/iho/mpay/internal/usecase"
	"github.com/iho/mpay/internal/usecase/mocks"
)

var epoch = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type testCLI struct {
	*cli
	ledger *mocks.Ledger
	clock  *clock.Fixed
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	l := mocks.NewLedger()
	l.AddUser(usecase.DefaultSystemUser)

	clk := clock.NewFixed(epoch)
	cfg := &config.Config{LogLevel: "error", SystemUser: "system", SchedulerAgent: "scheduler"}

	c := &cli{cfg: cfg}
	c.open = func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
		return newApp(cfg, repositories{
			txManager: mocks.NewFakeTxManager(l),
			users:     mocks.NewFakeUserRepository(l),
			txs:       mocks.NewFakeTransactionRepository(l),
			orders:    mocks.NewFakeOrderRepository(l),
			tags:      mocks.NewFakeTagRepository(l),
			agents:    mocks.NewFakeAgentRepository(l),
			ledger:    mocks.NewFakeLedgerRepository(l),
			retrier:   &mocks.FakeRetrier{},
			idGen:     &mocks.SequenceIDGenerator{},
			clock:     clk,
		}, zerolog.Nop()), nil
	}

	return &testCLI{cli: c, ledger: l, clock: clk}
}

func (c *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := c.rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())

	return out.String(), err
}

func (c *testCLI) mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, err := c.run(t, args...)
	require.NoError(t, err, out)

	return out
}

func TestPayAndBalance(t *testing.T) {
	c := newTestCLI(t)

	c.mustRun(t, "user", "create", "alice")
	c.mustRun(t, "user", "create", "bob")

	out := c.mustRun(t, "--as", "alice", "pay", "bob", "12.5", "--note", "dinner", "--tag", "food", "--create-missing")
	assert.Contains(t, out, "alice paid bob 12.50")

	// A negative amount flips the direction.
	out = c.mustRun(t, "--as", "alice", "pay", "bob", "--", "-2")
	assert.Contains(t, out, "bob paid alice 2.00")

	out = c.mustRun(t, "balance", "bob")
	assert.Contains(t, out, "10.50")

	out = c.mustRun(t, "balance", "--all", "-o", "csv")
	assert.Equal(t, "USER,BALANCE\nalice,-10.50\nbob,10.50\nsystem,0.00\n", out)

	txs := c.ledger.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, txs[0].FromUserID, txs[0].CreatedByID)
	assert.True(t, txs[1].Amount.IsPositive())
}

func TestPayRequiresActingUser(t *testing.T) {
	c := newTestCLI(t)
	c.ledger.AddUser("bob")

	_, err := c.run(t, "pay", "bob", "1")
	require.ErrorIs(t, err, domain.ErrActingUserNeeded)

	_, err = c.run(t, "--as", "bob", "pay", "bob", "abc")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = c.run(t, "--as", "bob", "pay", "bob", "1")
	require.ErrorIs(t, err, domain.ErrSameUser)

	_, err = c.run(t, "--as", "bob", "pay", "system", "1", "--original-amount", "3")
	require.ErrorIs(t, err, domain.ErrOriginalPair)

	assert.Empty(t, c.ledger.Transactions())
}

func TestHistory(t *testing.T) {
	c := newTestCLI(t)
	c.ledger.AddUser("alice")
	c.ledger.AddUser("bob")

	c.mustRun(t, "--as", "alice", "pay", "bob", "30", "--original-amount", "32.10", "--original-currency", "USD", "--due", "2025-03-01")

	out := c.mustRun(t, "history", "bob")
	assert.Contains(t, out, "2025-03-01T00:00:00Z")
	assert.Contains(t, out, "$32.10")
	assert.Contains(t, out, "alice")

	_, err := c.run(t, "history")
	require.ErrorIs(t, err, domain.ErrActingUserNeeded)
}

func TestOrdersAndRunDue(t *testing.T) {
	c := newTestCLI(t)
	c.ledger.AddUser("alice")
	c.ledger.AddUser("bob")

	out := c.mustRun(t, "--as", "alice", "order", "create", "rent",
		"--to", "bob", "--amount", "100", "--rule", "DTSTART:20250310T090000Z\nRRULE:FREQ=DAILY")
	assert.Contains(t, out, "created order rent (pending), next due 2025-03-10T09:00:00Z")

	out = c.mustRun(t, "run-due", "--as-of", "2025-03-12T10:00:00Z")
	assert.Contains(t, out, "rent")
	assert.Len(t, c.ledger.Transactions(), 3)

	_, err := c.run(t, "order", "delete", "rent")
	require.ErrorIs(t, err, domain.ErrOrderHasTransactions)

	out = c.mustRun(t, "order", "disable", "rent")
	assert.Contains(t, out, "cutoff 2025-03-13T09:00:00Z")

	out = c.mustRun(t, "order", "list")
	assert.Contains(t, out, "disabled")

	out = c.mustRun(t, "check")
	assert.Equal(t, "ledger is consistent\n", out)
}

func TestCheckReportsViolations(t *testing.T) {
	c := newTestCLI(t)
	alice := c.ledger.AddUser("alice")

	c.ledger.Insert(domain.Transaction{
		FromUserID:  alice.ID,
		ToUserID:    alice.ID,
		CreatedByID: alice.ID,
		Amount:      decimal.NewFromInt(1),
		DueAt:       epoch,
		CreatedAt:   epoch,
	})

	out, err := c.run(t, "check")
	require.ErrorIs(t, err, errViolations)
	assert.Contains(t, out, string(domain.ViolationSelfTransfer))
}

func TestTagsAndAgents(t *testing.T) {
	c := newTestCLI(t)

	c.mustRun(t, "tag", "create", "food", "things to eat")
	c.mustRun(t, "tag", "create", "travel")
	c.mustRun(t, "tag", "create", "food/restaurants")
	c.mustRun(t, "tag", "create", "food/groceries")
	c.mustRun(t, "agent", "create", "bank", "checking account")

	out := c.mustRun(t, "tag", "list")
	assert.Contains(t, out, "food/groceries")
	assert.Contains(t, out, "things to eat")

	out = c.mustRun(t, "agent", "list", "-o", "json")
	assert.Contains(t, out, `"name": "bank"`)
	assert.Contains(t, out, `"description": "checking account"`)

	out = c.mustRun(t, "tag", "tree")

	lines := []string{"├── food", "│   ├── groceries", "│   └── restaurants", "└── travel"}
	last := -1
	for _, line := range lines {
		i := strings.Index(out, line)
		require.Greater(t, i, last, "%q out of order in\n%s", line, out)
		last = i
	}
	assert.Contains(t, out, "things to eat")

	out = c.mustRun(t, "tag", "tree", "-o", "json")
	assert.Contains(t, out, `"children": [`)

	_, err := c.run(t, "tag", "create", "a", "b", "c")
	require.Error(t, err)

	_, err = c.run(t, "tag", "list", "-o", "yaml")
	require.Error(t, err)
}

func TestImportCommand(t *testing.T) {
	c := newTestCLI(t)
	c.ledger.AddUser("alice")
	c.ledger.AddUser("bob")

	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("amount;dt_due;note\n10;2025-01-05;groceries\n-4;;refund\n"), 0o600))

	out := c.mustRun(t, "--as", "alice", "import", path, "--from", "alice", "--to", "bob", "--delimiter", ";")
	assert.Contains(t, out, "imported 2 transactions")

	out = c.mustRun(t, "balance", "bob")
	assert.Contains(t, out, "6.00")

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("amount\n5\n0\n"), 0o600))

	_, err := c.run(t, "import", bad, "--from", "alice", "--to", "bob")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Len(t, c.ledger.Transactions(), 2, "failed import writes nothing")
}

func TestParseImportCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		rows    int
		wantErr string
	}{
		{name: "all columns", input: "amount,due_at,note\n1.5,2025-01-01T10:00:00Z,x\n2,,\n", rows: 2},
		{name: "amount only", input: "Amount\n3\n", rows: 1},
		{name: "empty", input: "", wantErr: "empty file"},
		{name: "no amount column", input: "note\nx\n", wantErr: "missing amount column"},
		{name: "bad amount", input: "amount\nten\n", wantErr: "line 2"},
		{name: "bad date", input: "amount,due_at\n1,yesterday\n", wantErr: "invalid time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseImportCSV(strings.NewReader(tt.input), ',')
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Len(t, rows, tt.rows)
		})
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "12.50", formatAmount(decimal.RequireFromString("12.5")))
	assert.Equal(t, "0.125", formatAmount(decimal.RequireFromString("0.125")))
	assert.Equal(t, "-3.00", formatAmount(decimal.NewFromInt(-3)))

	amount := decimal.RequireFromString("12.5")
	eur := "EUR"
	assert.Equal(t, "€12.50", formatOriginal(&amount, &eur))
	assert.Equal(t, "", formatOriginal(nil, &eur))

	big := decimal.RequireFromString("1234.56")
	usd := "USD"
	assert.Equal(t, "$1,234.56", formatOriginal(&big, &usd))

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}
}

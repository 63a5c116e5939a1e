package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository. Balances are never
// stored; every call folds the transaction log.
type LedgerRepository struct {
	pool DBTX
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool DBTX) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// balanceQuery sums both sides of every transaction per user. Users
// without transactions get 0.
const balanceQuery = `
	SELECT u.id, u.name, COALESCE(SUM(s.delta), 0)
	FROM users u
	LEFT JOIN (
		SELECT to_user_id AS user_id, amount AS delta FROM transactions
		UNION ALL
		SELECT from_user_id AS user_id, -amount AS delta FROM transactions
	) s ON s.user_id = u.id
`

// Balances returns the balance of every user, ordered by name.
func (r *LedgerRepository) Balances(ctx context.Context, tx usecase.Transaction) ([]domain.UserBalance, error) {
	rows, err := conn(r.pool, tx).Query(ctx, balanceQuery+` GROUP BY u.id, u.name ORDER BY u.name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var balances []domain.UserBalance

	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, mapError(err)
		}

		balances = append(balances, b)
	}

	return balances, mapError(rows.Err())
}

// Balance returns the balance of one user.
func (r *LedgerRepository) Balance(ctx context.Context, tx usecase.Transaction, userID int64) (decimal.Decimal, error) {
	b, err := scanBalance(conn(r.pool, tx).QueryRow(ctx, balanceQuery+` WHERE u.id = $1 GROUP BY u.id, u.name`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, domain.ErrUserNotFound
	}

	if err != nil {
		return decimal.Zero, mapError(err)
	}

	return b.Balance, nil
}

func scanBalance(row pgx.Row) (domain.UserBalance, error) {
	var (
		b   domain.UserBalance
		sum pgtype.Numeric
	)

	if err := row.Scan(&b.UserID, &b.Name, &sum); err != nil {
		return b, err
	}

	b.Balance = numericToDecimal(sum)

	return b, nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// TransactionRepository implements usecase.TransactionRepository.
// Rows are only ever inserted; the schema rejects updates and deletes.
type TransactionRepository struct {
	pool DBTX
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool DBTX) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `
	t.id, t.from_user_id, t.to_user_id, t.amount, t.original_amount, t.original_currency,
	t.note, t.agent_id, t.standing_order_id, t.due_at, t.created_at, t.created_by_id,
	ARRAY(SELECT tt.tag_id FROM transaction_tags tt WHERE tt.transaction_id = t.id ORDER BY tt.tag_id)
`

// Create inserts a transaction with its tag links and sets its ID.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	db := conn(r.pool, tx)

	query := `
		INSERT INTO transactions (
			from_user_id, to_user_id, amount, original_amount, original_currency,
			note, agent_id, standing_order_id, due_at, created_at, created_by_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := db.QueryRow(ctx, query,
		t.FromUserID,
		t.ToUserID,
		decimalToNumeric(t.Amount),
		nullableNumeric(t.OriginalAmount),
		t.OriginalCurrency,
		t.Note,
		t.AgentID,
		t.StandingOrderID,
		t.DueAt,
		t.CreatedAt,
		t.CreatedByID,
	).Scan(&t.ID)
	if err != nil {
		return mapError(err)
	}

	if len(t.TagIDs) == 0 {
		return nil
	}

	_, err = db.Exec(ctx,
		`INSERT INTO transaction_tags (transaction_id, tag_id) SELECT $1, unnest($2::BIGINT[])`,
		t.ID, t.TagIDs,
	)

	return mapError(err)
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE t.id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}

	if err != nil {
		return nil, mapError(err)
	}

	return t, nil
}

// ListByUser lists transactions touching a user, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.from_user_id = $1 OR t.to_user_id = $1
		ORDER BY t.id DESC
		LIMIT $2 OFFSET $3
	`

	return r.list(ctx, r.pool, query, userID, limit, offset)
}

// ListByOrder lists the transactions materialized from an order by due time.
func (r *TransactionRepository) ListByOrder(ctx context.Context, tx usecase.Transaction, orderID int64) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.standing_order_id = $1
		ORDER BY t.due_at, t.id
	`

	return r.list(ctx, conn(r.pool, tx), query, orderID)
}

// CountByOrder counts the transactions materialized from an order.
func (r *TransactionRepository) CountByOrder(ctx context.Context, tx usecase.Transaction, orderID int64) (int, error) {
	var count int

	err := conn(r.pool, tx).QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE standing_order_id = $1`, orderID,
	).Scan(&count)

	return count, mapError(err)
}

// Scan streams every transaction in id order to fn. It stops at the first
// error returned by fn.
func (r *TransactionRepository) Scan(ctx context.Context, tx usecase.Transaction, fn func(*domain.Transaction) error) error {
	query := `SELECT ` + transactionColumns + ` FROM transactions t ORDER BY t.id`

	rows, err := conn(r.pool, tx).Query(ctx, query)
	if err != nil {
		return mapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return mapError(err)
		}

		if err := fn(t); err != nil {
			return err
		}
	}

	return mapError(rows.Err())
}

func (r *TransactionRepository) list(ctx context.Context, db DBTX, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var txs []*domain.Transaction

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapError(err)
		}

		txs = append(txs, t)
	}

	return txs, mapError(rows.Err())
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		amount         pgtype.Numeric
		originalAmount pgtype.Numeric
	)

	err := row.Scan(
		&t.ID,
		&t.FromUserID,
		&t.ToUserID,
		&amount,
		&originalAmount,
		&t.OriginalCurrency,
		&t.Note,
		&t.AgentID,
		&t.StandingOrderID,
		&t.DueAt,
		&t.CreatedAt,
		&t.CreatedByID,
		&t.TagIDs,
	)
	if err != nil {
		return nil, err
	}

	t.Amount = numericToDecimal(amount)
	t.OriginalAmount = numericToNullable(originalAmount)
	t.DueAt = t.DueAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()

	return &t, nil
}

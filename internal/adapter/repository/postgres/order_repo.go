package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// OrderRepository implements usecase.OrderRepository.
type OrderRepository struct {
	pool DBTX
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(pool DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderSelect = `
	SELECT o.id, o.name, o.from_user_id, fu.name, o.to_user_id, tu.name,
		o.amount, o.note, o.rrule, o.next_due_at, o.cutoff_at, o.created_at
	FROM standing_orders o
	JOIN users fu ON fu.id = o.from_user_id
	JOIN users tu ON tu.id = o.to_user_id
`

// Create inserts a standing order and sets its ID.
func (r *OrderRepository) Create(ctx context.Context, order *domain.StandingOrder) error {
	query := `
		INSERT INTO standing_orders (name, from_user_id, to_user_id, amount, note, rrule, next_due_at, cutoff_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		order.Name,
		order.FromUserID,
		order.ToUserID,
		decimalToNumeric(order.Amount),
		order.Note,
		order.Rule,
		order.NextDueAt,
		order.CutoffAt,
		order.CreatedAt,
	).Scan(&order.ID)
	if isUniqueViolation(err) {
		return domain.ErrOrderExists
	}

	return mapError(err)
}

// GetByName retrieves a standing order by name without locking it.
func (r *OrderRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.StandingOrder, error) {
	return r.get(ctx, conn(r.pool, tx), orderSelect+` WHERE o.name = $1`, name)
}

// GetByIDForUpdate retrieves a standing order by ID with a FOR UPDATE lock
// held until tx ends.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.StandingOrder, error) {
	return r.get(ctx, tx.(*Tx).PgxTx(), orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id)
}

// ListDue lists pending orders with an occurrence at or before asOf.
func (r *OrderRepository) ListDue(ctx context.Context, asOf time.Time) ([]*domain.StandingOrder, error) {
	return r.list(ctx, r.pool, orderSelect+` WHERE o.next_due_at <= $1 ORDER BY o.id`, asOf)
}

// List lists all standing orders by name.
func (r *OrderRepository) List(ctx context.Context, tx usecase.Transaction) ([]*domain.StandingOrder, error) {
	return r.list(ctx, conn(r.pool, tx), orderSelect+` ORDER BY o.name`)
}

// UpdatePointers moves the pending and cutoff pointers of an order. They
// are the only columns the schema lets change.
func (r *OrderRepository) UpdatePointers(ctx context.Context, tx usecase.Transaction, id int64, next, cutoff *time.Time) error {
	tag, err := conn(r.pool, tx).Exec(ctx,
		`UPDATE standing_orders SET next_due_at = $2, cutoff_at = $3 WHERE id = $1`,
		id, next, cutoff,
	)
	if err != nil {
		return mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

// Delete removes an order. Orders referenced by transactions are kept by
// the foreign key.
func (r *OrderRepository) Delete(ctx context.Context, tx usecase.Transaction, id int64) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `DELETE FROM standing_orders WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) get(ctx context.Context, db DBTX, query string, args ...any) (*domain.StandingOrder, error) {
	order, err := scanOrder(db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}

	if err != nil {
		return nil, mapError(err)
	}

	return order, nil
}

func (r *OrderRepository) list(ctx context.Context, db DBTX, query string, args ...any) ([]*domain.StandingOrder, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var orders []*domain.StandingOrder

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, mapError(err)
		}

		orders = append(orders, order)
	}

	return orders, mapError(rows.Err())
}

func scanOrder(row pgx.Row) (*domain.StandingOrder, error) {
	var (
		o      domain.StandingOrder
		amount pgtype.Numeric
	)

	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.FromUserID,
		&o.FromUser,
		&o.ToUserID,
		&o.ToUser,
		&amount,
		&o.Note,
		&o.Rule,
		&o.NextDueAt,
		&o.CutoffAt,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Amount = numericToDecimal(amount)
	o.NextDueAt = utc(o.NextDueAt)
	o.CutoffAt = utc(o.CutoffAt)
	o.CreatedAt = o.CreatedAt.UTC()

	return &o, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}

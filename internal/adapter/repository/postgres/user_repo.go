package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// UserRepository implements usecase.UserRepository.
type UserRepository struct {
	pool DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(pool DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, active, created_at`

// Create inserts a new user and sets its ID.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, active, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query, user.Name, user.Active, user.CreatedAt).Scan(&user.ID)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}

	return mapError(err)
}

// GetByName retrieves a user by name.
func (r *UserRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE name = $1`

	user, err := scanUser(conn(r.pool, tx).QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}

	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

// List retrieves all users ordered by name.
func (r *UserRepository) List(ctx context.Context, tx usecase.Transaction) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY name`

	rows, err := conn(r.pool, tx).Query(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []*domain.User

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, mapError(err)
		}

		users = append(users, user)
	}

	return users, mapError(rows.Err())
}

// Deactivate clears the active flag of a user.
func (r *UserRepository) Deactivate(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET active = FALSE WHERE name = $1`, name)
	if err != nil {
		return mapError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User

	if err := row.Scan(&user.ID, &user.Name, &user.Active, &user.CreatedAt); err != nil {
		return nil, err
	}

	return &user, nil
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// TagRepository implements usecase.TagRepository.
type TagRepository struct {
	pool DBTX
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(pool DBTX) *TagRepository {
	return &TagRepository{pool: pool}
}

// Create inserts a tag under its parent and sets its ID.
func (r *TagRepository) Create(ctx context.Context, tx usecase.Transaction, tag *domain.Tag) error {
	err := conn(r.pool, tx).QueryRow(ctx,
		`INSERT INTO tags (parent_id, name, description, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		tag.ParentID, tag.Name, tag.Description, tag.CreatedAt,
	).Scan(&tag.ID)
	if isUniqueViolation(err) {
		return domain.ErrTagExists
	}

	return mapError(err)
}

// GetChild finds the tag called name under parentID. A nil parentID
// looks among root tags.
func (r *TagRepository) GetChild(ctx context.Context, tx usecase.Transaction, parentID *int64, name string) (*domain.Tag, error) {
	var tag domain.Tag

	err := conn(r.pool, tx).QueryRow(ctx,
		`SELECT id, parent_id, name, description, created_at FROM tags WHERE parent_id IS NOT DISTINCT FROM $1 AND name = $2`,
		parentID, name,
	).Scan(&tag.ID, &tag.ParentID, &tag.Name, &tag.Description, &tag.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTagNotFound
	}

	if err != nil {
		return nil, mapError(err)
	}

	return &tag, nil
}

// List lists all tags by ID. Paths are built by the caller.
func (r *TagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, parent_id, name, description, created_at FROM tags ORDER BY id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tags []*domain.Tag

	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.ParentID, &tag.Name, &tag.Description, &tag.CreatedAt); err != nil {
			return nil, mapError(err)
		}

		tags = append(tags, &tag)
	}

	return tags, mapError(rows.Err())
}

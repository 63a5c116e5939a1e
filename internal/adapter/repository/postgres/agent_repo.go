package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// AgentRepository implements usecase.AgentRepository.
type AgentRepository struct {
	pool DBTX
}

// NewAgentRepository creates a new AgentRepository.
func NewAgentRepository(pool DBTX) *AgentRepository {
	return &AgentRepository{pool: pool}
}

// Create inserts an agent and sets its ID.
func (r *AgentRepository) Create(ctx context.Context, tx usecase.Transaction, agent *domain.Agent) error {
	err := conn(r.pool, tx).QueryRow(ctx,
		`INSERT INTO agents (name, description, created_at) VALUES ($1, $2, $3) RETURNING id`,
		agent.Name, agent.Description, agent.CreatedAt,
	).Scan(&agent.ID)
	if isUniqueViolation(err) {
		return domain.ErrAgentExists
	}

	return mapError(err)
}

// GetByName retrieves an agent by name.
func (r *AgentRepository) GetByName(ctx context.Context, tx usecase.Transaction, name string) (*domain.Agent, error) {
	var agent domain.Agent

	err := conn(r.pool, tx).QueryRow(ctx,
		`SELECT id, name, description, created_at FROM agents WHERE name = $1`, name,
	).Scan(&agent.ID, &agent.Name, &agent.Description, &agent.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAgentNotFound
	}

	if err != nil {
		return nil, mapError(err)
	}

	return &agent, nil
}

// List lists all agents by name.
func (r *AgentRepository) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM agents ORDER BY name`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var agents []*domain.Agent

	for rows.Next() {
		var agent domain.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Description, &agent.CreatedAt); err != nil {
			return nil, mapError(err)
		}

		agents = append(agents, &agent)
	}

	return agents, mapError(rows.Err())
}

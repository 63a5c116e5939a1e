package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/mpay/internal/domain"
)

// lookupUser resolves a user by name inside tx. Inactive users are rejected
// when active is set.
func lookupUser(ctx context.Context, repo UserRepository, tx Transaction, name string, active bool) (*domain.User, error) {
	name, err := domain.SanitizeUserName(name)
	if err != nil {
		return nil, err
	}

	user, err := repo.GetByName(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	if active && !user.Active {
		return nil, domain.ErrUserInactive
	}

	return user, nil
}

// resolveAgent finds an agent by name, creating it when create is set.
func resolveAgent(ctx context.Context, repo AgentRepository, tx Transaction, name string, create bool, now time.Time) (*domain.Agent, error) {
	name, err := domain.SanitizeAgentName(name)
	if err != nil {
		return nil, err
	}

	agent, err := repo.GetByName(ctx, tx, name)
	if err == nil {
		return agent, nil
	}

	if !errors.Is(err, domain.ErrAgentNotFound) || !create {
		return nil, err
	}

	agent = &domain.Agent{Name: name, CreatedAt: now}
	if err := repo.Create(ctx, tx, agent); err != nil {
		return nil, createdConcurrently(err, domain.ErrAgentExists)
	}

	return agent, nil
}

// resolveTag walks a tag path from the root. Missing segments are created
// when create is set, otherwise the first missing segment fails the lookup.
func resolveTag(ctx context.Context, repo TagRepository, tx Transaction, path string, create bool, now time.Time) (*domain.Tag, error) {
	parts, err := domain.ParseTagPath(path)
	if err != nil {
		return nil, err
	}

	var parent *domain.Tag

	for i, name := range parts {
		var parentID *int64
		if parent != nil {
			parentID = &parent.ID
		}

		tag, err := repo.GetChild(ctx, tx, parentID, name)
		if err != nil {
			if !errors.Is(err, domain.ErrTagNotFound) || !create {
				return nil, err
			}

			tag = &domain.Tag{Name: name, ParentID: parentID, CreatedAt: now}
			if err := repo.Create(ctx, tx, tag); err != nil {
				return nil, createdConcurrently(err, domain.ErrTagExists)
			}
		}

		tag.Path = domain.JoinTagPath(parts[:i+1])
		parent = tag
	}

	return parent, nil
}

// createdConcurrently turns a duplicate insert of a row that was missing a
// moment ago into a conflict, so the whole operation is retried and finds it.
func createdConcurrently(err, exists error) error {
	if errors.Is(err, exists) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}

	return err
}

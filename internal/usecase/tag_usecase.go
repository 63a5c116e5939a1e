package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/iho/mpay/internal/domain"
)

// TagUseCase manages tags and agents, the labels attached to transactions.
type TagUseCase struct {
	txManager TransactionManager
	tagRepo   TagRepository
	agentRepo AgentRepository
	clock     Clock
}

// NewTagUseCase creates a new TagUseCase.
func NewTagUseCase(txManager TransactionManager, tagRepo TagRepository, agentRepo AgentRepository, clock Clock) *TagUseCase {
	return &TagUseCase{
		txManager: txManager,
		tagRepo:   tagRepo,
		agentRepo: agentRepo,
		clock:     clock,
	}
}

// CreateTag creates the last segment of path. Its parent must already exist.
// A blank description is stored as none.
func (uc *TagUseCase) CreateTag(ctx context.Context, path, description string) (*domain.Tag, error) {
	parts, err := domain.ParseTagPath(path)
	if err != nil {
		return nil, err
	}

	desc, err := domain.SanitizeDescription(description)
	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var parentID *int64

	if len(parts) > 1 {
		parent, err := resolveTag(ctx, uc.tagRepo, tx, domain.JoinTagPath(parts[:len(parts)-1]), false, uc.clock.Now())
		if err != nil {
			if errors.Is(err, domain.ErrTagNotFound) {
				return nil, domain.ErrParentTagNotFound
			}

			return nil, err
		}

		parentID = &parent.ID
	}

	name := parts[len(parts)-1]

	_, err = uc.tagRepo.GetChild(ctx, tx, parentID, name)
	if err == nil {
		return nil, domain.ErrTagExists
	}

	if !errors.Is(err, domain.ErrTagNotFound) {
		return nil, err
	}

	tag := &domain.Tag{
		Name:        name,
		ParentID:    parentID,
		Description: desc,
		Path:        domain.JoinTagPath(parts),
		CreatedAt:   uc.clock.Now(),
	}

	if err := uc.tagRepo.Create(ctx, tx, tag); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return tag, nil
}

// ListTags returns every tag with its full path, sorted by path.
func (uc *TagUseCase) ListTags(ctx context.Context) ([]*domain.Tag, error) {
	tags, err := uc.tagRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Tag, len(tags))
	for _, tag := range tags {
		byID[tag.ID] = tag
	}

	for _, tag := range tags {
		tag.Path = tagPath(tag, byID)
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Path < tags[j].Path })

	return tags, nil
}

// TagTree returns the tag hierarchy, roots and children sorted by name.
func (uc *TagUseCase) TagTree(ctx context.Context) ([]*domain.TagNode, error) {
	tags, err := uc.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	return domain.BuildTagTree(tags), nil
}

func tagPath(tag *domain.Tag, byID map[int64]*domain.Tag) string {
	parts := []string{tag.Name}

	// Depth is bounded by the number of tags, which also stops a corrupted cycle.
	for cur := tag; cur.ParentID != nil && len(parts) <= len(byID); {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			break
		}

		parts = append([]string{parent.Name}, parts...)
		cur = parent
	}

	return domain.JoinTagPath(parts)
}

// CreateAgent registers a new agent.
func (uc *TagUseCase) CreateAgent(ctx context.Context, name, description string) (*domain.Agent, error) {
	name, err := domain.SanitizeAgentName(name)
	if err != nil {
		return nil, err
	}

	desc, err := domain.SanitizeDescription(description)
	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = uc.agentRepo.GetByName(ctx, tx, name)
	if err == nil {
		return nil, domain.ErrAgentExists
	}

	if !errors.Is(err, domain.ErrAgentNotFound) {
		return nil, err
	}

	agent := &domain.Agent{Name: name, Description: desc, CreatedAt: uc.clock.Now()}
	if err := uc.agentRepo.Create(ctx, tx, agent); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return agent, nil
}

// ListAgents returns all agents.
func (uc *TagUseCase) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	return uc.agentRepo.List(ctx)
}

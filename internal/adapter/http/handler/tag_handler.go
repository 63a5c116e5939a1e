package handler

import (
	"net/http"

	"github.com/iho/mpay/internal/adapter/http/dto"
	"github.com/iho/mpay/internal/domain"
	"github.com/iho/mpay/internal/usecase"
)

// TagHandler handles tag and agent HTTP requests.
type TagHandler struct {
	tagUC *usecase.TagUseCase
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(tagUC *usecase.TagUseCase) *TagHandler {
	return &TagHandler{tagUC: tagUC}
}

// CreateTag creates a tag from a slash separated path.
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	tag, err := h.tagUC.CreateTag(r.Context(), req.Path, req.Description)
	if err != nil {
		writeDomainError(w, "failed to create tag", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TagFromDomain(tag))
}

// ListTags lists all tags with their paths.
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tagUC.ListTags(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list tags", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TagsFromDomain(tags))
}

// TagTree returns the tag hierarchy.
func (h *TagHandler) TagTree(w http.ResponseWriter, r *http.Request) {
	roots, err := h.tagUC.TagTree(r.Context())
	if err != nil {
		writeDomainError(w, "failed to build tag tree", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TagTreeFromDomain(roots))
}

// CreateAgent creates an agent.
func (h *TagHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	agent, err := h.tagUC.CreateAgent(r.Context(), req.Name, req.Description)
	if err != nil {
		writeDomainError(w, "failed to create agent", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AgentsFromDomain([]*domain.Agent{agent})[0])
}

// ListAgents lists all agents.
func (h *TagHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.tagUC.ListAgents(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list agents", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AgentsFromDomain(agents))
}

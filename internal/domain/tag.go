package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TagSeparator separates the segments of a hierarchical tag path.
const TagSeparator = "/"

// Tag is a node of the tag hierarchy. Path is the full name from the root,
// for example "food/groceries".
type Tag struct {
	CreatedAt   time.Time
	ParentID    *int64
	Description *string
	Name        string
	Path        string
	ID          int64
}

// TagNode is a tag with its children, sorted by name.
type TagNode struct {
	Tag      *Tag
	Children []*TagNode
}

// ParseTagPath splits a path like "food/groceries" into validated segments.
func ParseTagPath(path string) ([]string, error) {
	path = strings.Trim(strings.TrimSpace(path), TagSeparator)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidTagName)
	}

	parts := strings.Split(path, TagSeparator)
	for i, p := range parts {
		name, err := SanitizeTagName(p)
		if err != nil {
			return nil, err
		}

		parts[i] = name
	}

	return parts, nil
}

// JoinTagPath is the inverse of ParseTagPath.
func JoinTagPath(parts []string) string {
	return strings.Join(parts, TagSeparator)
}

// BuildTagTree arranges tags into trees by ParentID. Roots and children are
// sorted by name. A tag whose parent is not in tags becomes a root.
func BuildTagTree(tags []*Tag) []*TagNode {
	nodes := make(map[int64]*TagNode, len(tags))
	for _, tag := range tags {
		nodes[tag.ID] = &TagNode{Tag: tag}
	}

	var roots []*TagNode

	for _, tag := range tags {
		node := nodes[tag.ID]

		if tag.ParentID != nil {
			if parent, ok := nodes[*tag.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}

		roots = append(roots, node)
	}

	sortTagNodes(roots, make(map[*TagNode]bool, len(nodes)))

	return roots
}

func sortTagNodes(nodes []*TagNode, seen map[*TagNode]bool) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Tag.Name < nodes[j].Tag.Name })

	for _, n := range nodes {
		if seen[n] {
			continue
		}

		seen[n] = true
		sortTagNodes(n.Children, seen)
	}
}

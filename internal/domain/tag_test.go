package domain

import "testing"

func TestBuildTagTree(t *testing.T) {
	id := func(v int64) *int64 { return &v }

	tags := []*Tag{
		{ID: 1, Name: "food"},
		{ID: 2, Name: "travel"},
		{ID: 3, Name: "restaurants", ParentID: id(1)},
		{ID: 4, Name: "groceries", ParentID: id(1)},
		{ID: 5, Name: "bakery", ParentID: id(4)},
		{ID: 6, Name: "stray", ParentID: id(99)},
		{ID: 7, Name: "bank"},
	}

	roots := BuildTagTree(tags)

	names := func(nodes []*TagNode) []string {
		out := make([]string, len(nodes))
		for i, n := range nodes {
			out[i] = n.Tag.Name
		}
		return out
	}

	if got := names(roots); len(got) != 4 || got[0] != "bank" || got[1] != "food" || got[2] != "stray" || got[3] != "travel" {
		t.Fatalf("unexpected roots %v", got)
	}

	food := roots[1]
	if got := names(food.Children); len(got) != 2 || got[0] != "groceries" || got[1] != "restaurants" {
		t.Fatalf("unexpected children of food %v", got)
	}

	if got := names(food.Children[0].Children); len(got) != 1 || got[0] != "bakery" {
		t.Fatalf("unexpected children of groceries %v", got)
	}

	if len(BuildTagTree(nil)) != 0 {
		t.Fatal("expected no roots for no tags")
	}
}

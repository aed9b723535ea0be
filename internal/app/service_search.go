package app

import (
	"context"
	"fmt"
	"strings"

	"ancestry/api/internal/search"
)

// SearchPersons finds people by name across every tree the user may view.
func (s *Service) SearchPersons(ctx context.Context, userID int64, text string, limit int) (search.Response, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}}, nil
	}

	shared, err := s.store.ListSharedTrees(ctx, userID)
	if err != nil {
		return search.Response{}, fmt.Errorf("list shared trees: %w", err)
	}
	sharedIDs := make([]int64, 0, len(shared))
	for _, tree := range shared {
		sharedIDs = append(sharedIDs, tree.ID)
	}

	return s.search.Search(ctx, search.Query{
		Text:          text,
		ViewerID:      userID,
		SharedTreeIDs: sharedIDs,
		Limit:         limit,
	})
}

package search

import (
	"context"
	"fmt"

	"ancestry/api/internal/store"
)

// PersonStore is the slice of the data store the fallback needs.
type PersonStore interface {
	SearchPersons(ctx context.Context, viewerID int64, query string, limit int) ([]store.PersonSearchRow, error)
}

// PgFallback answers searches straight from Postgres when Meilisearch is
// down or unconfigured. The visibility rules live in the store query.
type PgFallback struct {
	store PersonStore
}

func NewPgFallback(personStore PersonStore) *PgFallback {
	return &PgFallback{store: personStore}
}

func (p *PgFallback) Search(ctx context.Context, q Query) ([]Result, int, error) {
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	rows, err := p.store.SearchPersons(ctx, q.ViewerID, q.Text, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("search persons: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		result := Result{
			PersonID:   row.ID,
			TreeID:     row.TreeID,
			TreeName:   row.TreeName,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			MaidenName: row.MaidenName,
		}
		if row.BirthDate != nil {
			result.BirthYear = row.BirthDate.Year()
		}
		if row.DeathDate != nil {
			result.DeathYear = row.DeathDate.Year()
		}
		results = append(results, result)
	}
	return results, len(results), nil
}

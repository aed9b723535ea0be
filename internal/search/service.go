package search

import (
	"context"
	"log"
)

// Service tries Meilisearch first and falls back to Postgres.
type Service struct {
	meili    *Meili
	fallback *PgFallback
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback *PgFallback) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(ctx context.Context, q Query) (Response, error) {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}, nil
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		return Response{}, err
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}, nil
}

// nonNil keeps empty result sets JSON-encoding as [] instead of null.
func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}

// IndexPerson pushes a person document to Meilisearch, fire-and-forget.
func (s *Service) IndexPerson(record PersonRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record.ID = DocumentID(record.PersonID, record.TreeID)
	go func() {
		if err := s.meili.IndexPerson(record); err != nil {
			log.Printf("search: index person %s: %v", record.ID, err)
		}
	}()
}

// RemovePerson drops a person's document for one tree, fire-and-forget.
func (s *Service) RemovePerson(personID, treeID int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeletePerson(personID, treeID); err != nil {
			log.Printf("search: delete person p%d-t%d: %v", personID, treeID, err)
		}
	}()
}

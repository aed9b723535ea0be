package app

import (
	"context"
	"fmt"

	"ancestry/api/internal/access"
	"ancestry/api/internal/export"
)

// ExportTree renders a tree as GEDCOM or PDF for any viewer of the tree.
func (s *Service) ExportTree(ctx context.Context, userID, treeID int64, format export.Format) (*export.Result, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level) {
		return nil, errNoViewAccess()
	}

	exporter := export.NewService(&exportStore{store: s.store})
	result, err := exporter.Export(ctx, export.Request{TreeID: treeID, Format: format})
	if err != nil {
		return nil, err
	}

	s.audit("tree exported", "actor", userID, "tree", treeID, "format", string(format))
	return result, nil
}

// exportStore adapts the data store to what the exporter reads.
type exportStore struct {
	store dataStore
}

func (e *exportStore) GetTree(ctx context.Context, treeID int64) (export.Tree, error) {
	tree, err := e.store.GetTree(ctx, treeID)
	if err != nil {
		return export.Tree{}, fmt.Errorf("get tree: %w", err)
	}
	return export.Tree{
		ID:          tree.ID,
		Name:        tree.Name,
		Description: tree.Description,
		Owner:       tree.OwnerUsername,
	}, nil
}

func (e *exportStore) ListMembers(ctx context.Context, treeID int64) ([]export.Person, error) {
	members, err := e.store.ListTreeMembers(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree members: %w", err)
	}
	out := make([]export.Person, 0, len(members))
	for _, person := range members {
		out = append(out, export.Person{
			ID:         person.ID,
			FirstName:  person.FirstName,
			MiddleName: person.MiddleName,
			LastName:   person.LastName,
			MaidenName: person.MaidenName,
			Gender:     person.Gender,
			BirthDate:  person.BirthDate,
			DeathDate:  person.DeathDate,
			BirthPlace: person.BirthPlace,
			DeathPlace: person.DeathPlace,
		})
	}
	return out, nil
}

func (e *exportStore) ListRelationships(ctx context.Context, treeID int64) ([]export.Relationship, error) {
	relationships, err := e.store.ListTreeRelationships(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	out := make([]export.Relationship, 0, len(relationships))
	for _, rel := range relationships {
		out = append(out, export.Relationship{
			ParentID: rel.ParentID,
			ChildID:  rel.ChildID,
			Type:     rel.Type,
		})
	}
	return out, nil
}

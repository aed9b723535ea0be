package app

import (
	"context"
	"fmt"
	"strings"

	"ancestry/api/internal/access"
	"ancestry/api/internal/store"
)

type RelationshipInput struct {
	ParentID int64  `json:"parentId"`
	ChildID  int64  `json:"childId"`
	Type     string `json:"relationshipType"`
}

var relationshipTypes = map[string]bool{
	"Biological": true,
	"Adopted":    true,
	"Step":       true,
	"Foster":     true,
}

func (s *Service) AddRelationship(ctx context.Context, userID, treeID int64, input RelationshipInput) (store.Relationship, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Relationship{}, err
	}
	if !access.CanEdit(level) {
		return store.Relationship{}, errNoEditAccess()
	}

	if input.ParentID == input.ChildID {
		return store.Relationship{}, errValidation("a person cannot be their own parent")
	}
	relType := strings.TrimSpace(input.Type)
	if relType == "" {
		relType = "Biological"
	}
	if !relationshipTypes[relType] {
		return store.Relationship{}, errValidation("unknown relationship type")
	}

	if err := s.requireTreeMember(ctx, treeID, input.ParentID); err != nil {
		return store.Relationship{}, err
	}
	if err := s.requireTreeMember(ctx, treeID, input.ChildID); err != nil {
		return store.Relationship{}, err
	}

	exists, err := s.store.RelationshipExists(ctx, input.ParentID, input.ChildID)
	if err != nil {
		return store.Relationship{}, fmt.Errorf("check relationship: %w", err)
	}
	if exists {
		return store.Relationship{}, errValidation("relationship already exists")
	}

	rel, err := s.store.InsertRelationship(ctx, store.Relationship{
		ParentID: input.ParentID,
		ChildID:  input.ChildID,
		Type:     relType,
	})
	if err != nil {
		return store.Relationship{}, fmt.Errorf("insert relationship: %w", err)
	}

	s.audit("relationship added", "actor", userID, "tree", treeID, "parent", rel.ParentID, "child", rel.ChildID)
	return rel, nil
}

func (s *Service) ListRelationships(ctx context.Context, userID, treeID int64) ([]store.Relationship, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level) {
		return nil, errNoViewAccess()
	}

	items, err := s.store.ListTreeRelationships(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	return items, nil
}

func (s *Service) DeleteRelationship(ctx context.Context, userID, treeID, relationshipID int64) error {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return err
	}
	if !access.CanEdit(level) {
		return errNoEditAccess()
	}

	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		if isNoRows(err) {
			return errRelationshipNotFound()
		}
		return fmt.Errorf("get relationship: %w", err)
	}

	// The relationship must belong to the addressed tree.
	parentIn, err := s.store.IsTreeMember(ctx, treeID, rel.ParentID)
	if err != nil {
		return fmt.Errorf("check tree member: %w", err)
	}
	childIn, err := s.store.IsTreeMember(ctx, treeID, rel.ChildID)
	if err != nil {
		return fmt.Errorf("check tree member: %w", err)
	}
	if !parentIn || !childIn {
		return errRelationshipNotFound()
	}

	if err := s.store.DeleteRelationship(ctx, relationshipID); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}

	s.audit("relationship deleted", "actor", userID, "tree", treeID, "relationship", relationshipID)
	return nil
}

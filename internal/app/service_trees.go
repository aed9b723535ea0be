package app

import (
	"context"
	"fmt"
	"strings"

	"ancestry/api/internal/access"
	"ancestry/api/internal/store"
)

type TreeInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"isPublic"`
}

type ShareTreeInput struct {
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

func (s *Service) CreateTree(ctx context.Context, session Session, input TreeInput) (store.FamilyTree, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.FamilyTree{}, errValidation("tree name is required")
	}

	tree, err := s.store.InsertTree(ctx, store.FamilyTree{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     session.UserID,
		IsPublic:    input.IsPublic,
	})
	if err != nil {
		return store.FamilyTree{}, fmt.Errorf("insert tree: %w", err)
	}

	s.audit("tree created", "actor", session.UserID, "tree", tree.ID)
	return tree, nil
}

// ListUserTrees returns the trees the user owns followed by the trees shared
// with them, each group newest first. A tree appearing in both groups is
// reported once, as owned.
func (s *Service) ListUserTrees(ctx context.Context, userID int64) ([]store.FamilyTree, error) {
	owned, err := s.store.ListOwnedTrees(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list owned trees: %w", err)
	}
	shared, err := s.store.ListSharedTrees(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list shared trees: %w", err)
	}

	seen := make(map[int64]bool, len(owned))
	trees := make([]store.FamilyTree, 0, len(owned)+len(shared))
	for _, tree := range owned {
		seen[tree.ID] = true
		trees = append(trees, tree)
	}
	for _, tree := range shared {
		if !seen[tree.ID] {
			trees = append(trees, tree)
		}
	}
	return trees, nil
}

func (s *Service) GetTree(ctx context.Context, userID, treeID int64) (store.FamilyTree, error) {
	tree, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.FamilyTree{}, err
	}
	if !access.CanView(level) {
		return store.FamilyTree{}, errNoViewAccess()
	}
	return tree, nil
}

func (s *Service) UpdateTree(ctx context.Context, userID, treeID int64, input TreeInput) (store.FamilyTree, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.FamilyTree{}, err
	}
	if !access.CanEdit(level) {
		return store.FamilyTree{}, errNoEditAccess()
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.FamilyTree{}, errValidation("tree name is required")
	}

	if err := s.store.UpdateTree(ctx, treeID, name, strings.TrimSpace(input.Description), input.IsPublic); err != nil {
		return store.FamilyTree{}, fmt.Errorf("update tree: %w", err)
	}

	s.audit("tree updated", "actor", userID, "tree", treeID)
	updated, err := s.store.GetTree(ctx, treeID)
	if err != nil {
		return store.FamilyTree{}, fmt.Errorf("reload tree: %w", err)
	}
	return updated, nil
}

// DeleteTree is reserved to the owner. An Admin grant is not enough.
func (s *Service) DeleteTree(ctx context.Context, userID, treeID int64) error {
	tree, _, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return err
	}
	if !access.CanDelete(access.Tree{OwnerID: tree.OwnerID, IsPublic: tree.IsPublic}, userID) {
		return errNotOwner()
	}

	if err := s.store.DeleteTree(ctx, treeID); err != nil {
		return fmt.Errorf("delete tree: %w", err)
	}

	s.audit("tree deleted", "actor", userID, "tree", treeID)
	return nil
}

func (s *Service) ShareTree(ctx context.Context, session Session, treeID int64, input ShareTreeInput) (store.Collaborator, error) {
	tree, level, err := s.resolveTreeAccess(ctx, treeID, session.UserID)
	if err != nil {
		return store.Collaborator{}, err
	}
	if !access.CanManage(level) {
		return store.Collaborator{}, errNoManageAccess()
	}

	permission := strings.TrimSpace(input.Permission)
	if permission == "" {
		permission = string(access.PermissionView)
	}
	if !access.ValidPermission(access.Permission(permission)) {
		return store.Collaborator{}, errInvalidPermission()
	}

	target, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if isNoRows(err) {
			return store.Collaborator{}, errUserNotFound()
		}
		return store.Collaborator{}, fmt.Errorf("lookup user: %w", err)
	}
	if target.ID == tree.OwnerID {
		return store.Collaborator{}, errCannotShareWithOwner()
	}

	existing, err := s.store.GetCollaborator(ctx, treeID, target.ID)
	if err != nil {
		return store.Collaborator{}, fmt.Errorf("lookup collaborator: %w", err)
	}
	if existing != nil {
		return store.Collaborator{}, errAlreadyCollaborator()
	}

	grant, err := s.store.InsertCollaborator(ctx, store.Collaborator{
		TreeID:     treeID,
		UserID:     target.ID,
		Permission: permission,
	})
	if err != nil {
		return store.Collaborator{}, fmt.Errorf("insert collaborator: %w", err)
	}
	grant.Username = target.Username
	grant.Email = target.Email

	s.audit("tree shared", "actor", session.UserID, "tree", treeID, "collaborator", target.ID, "permission", permission)

	if s.SMTPConfigured() {
		go func() {
			if err := s.mail.SendTreeInvitation(target.Email, tree.Name, session.Username, permission); err != nil {
				s.audit("invitation mail failed", "tree", treeID, "collaborator", target.ID, "error", err.Error())
			}
		}()
	}

	return grant, nil
}

func (s *Service) ListCollaborators(ctx context.Context, userID, treeID int64) ([]store.Collaborator, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level) {
		return nil, errNoViewAccess()
	}

	items, err := s.store.ListCollaborators(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	return items, nil
}

func (s *Service) RemoveCollaborator(ctx context.Context, userID, treeID, collaboratorID int64) error {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return err
	}
	if !access.CanManage(level) {
		return errNoManageAccess()
	}

	grant, err := s.store.GetCollaboratorByID(ctx, collaboratorID)
	if err != nil {
		if isNoRows(err) {
			return errCollaboratorNotFound()
		}
		return fmt.Errorf("lookup collaborator: %w", err)
	}
	if grant.TreeID != treeID {
		return errCollaboratorNotFound()
	}

	if err := s.store.DeleteCollaborator(ctx, collaboratorID); err != nil {
		return fmt.Errorf("delete collaborator: %w", err)
	}

	s.audit("collaborator removed", "actor", userID, "tree", treeID, "collaborator", grant.UserID)
	return nil
}

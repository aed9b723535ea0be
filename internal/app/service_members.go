package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ancestry/api/internal/access"
	"ancestry/api/internal/search"
	"ancestry/api/internal/store"
)

type PersonInput struct {
	FirstName       string     `json:"firstName"`
	MiddleName      string     `json:"middleName"`
	LastName        string     `json:"lastName"`
	MaidenName      string     `json:"maidenName"`
	BirthDate       *time.Time `json:"birthDate"`
	DeathDate       *time.Time `json:"deathDate"`
	BirthPlace      string     `json:"birthPlace"`
	DeathPlace      string     `json:"deathPlace"`
	Gender          string     `json:"gender"`
	Biography       string     `json:"biography"`
	ProfilePhotoURL string     `json:"profilePhotoUrl"`
}

func (s *Service) AddPerson(ctx context.Context, userID, treeID int64, input PersonInput) (store.Person, error) {
	tree, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Person{}, err
	}
	if !access.CanEdit(level) {
		return store.Person{}, errNoEditAccess()
	}

	person, derr := s.personFromInput(store.Person{}, input)
	if derr != nil {
		return store.Person{}, derr
	}

	person, err = s.store.InsertPerson(ctx, person)
	if err != nil {
		return store.Person{}, fmt.Errorf("insert person: %w", err)
	}
	if err := s.store.InsertTreeMember(ctx, treeID, person.ID); err != nil {
		return store.Person{}, fmt.Errorf("insert tree member: %w", err)
	}

	s.audit("person added", "actor", userID, "person", person.ID, "tree", treeID)
	s.indexPerson(tree, person)
	return person, nil
}

func (s *Service) ListMembers(ctx context.Context, userID, treeID int64) ([]store.Person, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level) {
		return nil, errNoViewAccess()
	}

	members, err := s.store.ListTreeMembers(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("list tree members: %w", err)
	}
	return members, nil
}

func (s *Service) GetPerson(ctx context.Context, userID, treeID, personID int64) (store.Person, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Person{}, err
	}
	if !access.CanView(level) {
		return store.Person{}, errNoViewAccess()
	}

	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return store.Person{}, err
	}
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		if isNoRows(err) {
			return store.Person{}, errPersonNotFoundInTree()
		}
		return store.Person{}, fmt.Errorf("get person: %w", err)
	}
	return person, nil
}

func (s *Service) UpdatePerson(ctx context.Context, userID, treeID, personID int64, input PersonInput) (store.Person, error) {
	tree, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Person{}, err
	}
	if !access.CanEdit(level) {
		return store.Person{}, errNoEditAccess()
	}

	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return store.Person{}, err
	}
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		if isNoRows(err) {
			return store.Person{}, errPersonNotFoundInTree()
		}
		return store.Person{}, fmt.Errorf("get person: %w", err)
	}

	person, derr := s.personFromInput(person, input)
	if derr != nil {
		return store.Person{}, derr
	}
	if err := s.store.UpdatePerson(ctx, person); err != nil {
		return store.Person{}, fmt.Errorf("update person: %w", err)
	}

	s.audit("person updated", "actor", userID, "person", personID, "tree", treeID)
	s.indexPerson(tree, person)
	return person, nil
}

// RemovePerson dissociates the person from the tree. The person row and any
// media survive; a relationship anywhere, in any tree, blocks the removal.
func (s *Service) RemovePerson(ctx context.Context, userID, treeID, personID int64) error {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return err
	}
	if !access.CanEdit(level) {
		return errNoEditAccess()
	}

	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return err
	}

	linked, err := s.store.PersonHasRelationships(ctx, personID)
	if err != nil {
		return fmt.Errorf("check relationships: %w", err)
	}
	if linked {
		return errHasExistingRelationships()
	}

	if err := s.store.DeleteTreeMember(ctx, treeID, personID); err != nil {
		return fmt.Errorf("delete tree member: %w", err)
	}

	s.audit("person removed", "actor", userID, "person", personID, "tree", treeID)
	if s.search != nil {
		s.search.RemovePerson(personID, treeID)
	}
	return nil
}

func (s *Service) requireTreeMember(ctx context.Context, treeID, personID int64) error {
	member, err := s.store.IsTreeMember(ctx, treeID, personID)
	if err != nil {
		return fmt.Errorf("check tree member: %w", err)
	}
	if !member {
		return errPersonNotFoundInTree()
	}
	return nil
}

// personFromInput applies the request onto the base record: trims every
// string, sanitizes a non-blank biography, and leaves a blank biography
// absent without touching the sanitizer. The date check runs last.
func (s *Service) personFromInput(base store.Person, input PersonInput) (store.Person, error) {
	base.FirstName = strings.TrimSpace(input.FirstName)
	base.MiddleName = strings.TrimSpace(input.MiddleName)
	base.LastName = strings.TrimSpace(input.LastName)
	base.MaidenName = strings.TrimSpace(input.MaidenName)
	base.BirthDate = input.BirthDate
	base.DeathDate = input.DeathDate
	base.BirthPlace = strings.TrimSpace(input.BirthPlace)
	base.DeathPlace = strings.TrimSpace(input.DeathPlace)
	base.Gender = strings.TrimSpace(input.Gender)
	base.ProfilePhotoURL = strings.TrimSpace(input.ProfilePhotoURL)

	if bio := strings.TrimSpace(input.Biography); bio == "" {
		base.Biography = nil
	} else {
		clean := s.sanitizer.Sanitize(bio)
		base.Biography = &clean
	}

	if base.FirstName == "" {
		return store.Person{}, errValidation("first name is required")
	}
	if base.BirthDate != nil && base.DeathDate != nil && base.DeathDate.Before(*base.BirthDate) {
		return store.Person{}, errInvalidDateRange()
	}
	return base, nil
}

func (s *Service) indexPerson(tree store.FamilyTree, person store.Person) {
	if s.search == nil {
		return
	}
	record := search.PersonRecord{
		PersonID:   person.ID,
		TreeID:     tree.ID,
		TreeName:   tree.Name,
		OwnerID:    tree.OwnerID,
		IsPublic:   tree.IsPublic,
		FirstName:  person.FirstName,
		LastName:   person.LastName,
		MaidenName: person.MaidenName,
	}
	if person.BirthDate != nil {
		record.BirthYear = person.BirthDate.Year()
	}
	if person.DeathDate != nil {
		record.DeathYear = person.DeathDate.Year()
	}
	s.search.IndexPerson(record)
}

package export

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DataStore defines the data access the exporter needs
type DataStore interface {
	GetTree(ctx context.Context, treeID int64) (Tree, error)
	ListMembers(ctx context.Context, treeID int64) ([]Person, error)
	ListRelationships(ctx context.Context, treeID int64) ([]Relationship, error)
}

// Service renders trees in the requested format
type Service struct {
	store DataStore
}

func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format. Access control is the
// caller's job; the exporter only reads and renders.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	tree, err := s.store.GetTree(ctx, req.TreeID)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	members, err := s.store.ListMembers(ctx, req.TreeID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	relationships, err := s.store.ListRelationships(ctx, req.TreeID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}

	switch req.Format {
	case FormatGEDCOM:
		return exportGEDCOM(tree, members, relationships), nil
	case FormatPDF:
		html, err := renderTreeHTML(templateData(tree, members, relationships))
		if err != nil {
			return nil, err
		}
		return exportPDF(html, tree.Name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
}

func templateData(tree Tree, members []Person, relationships []Relationship) TemplateData {
	names := make(map[int64]string, len(members))
	data := TemplateData{
		TreeName:    tree.Name,
		Description: tree.Description,
		Owner:       tree.Owner,
		GeneratedAt: time.Now(),
	}

	for _, person := range members {
		name := displayName(person)
		names[person.ID] = name
		data.Members = append(data.Members, TemplateMember{
			Name:       name,
			Gender:     person.Gender,
			BirthDate:  person.BirthDate,
			DeathDate:  person.DeathDate,
			BirthPlace: person.BirthPlace,
			DeathPlace: person.DeathPlace,
		})
	}

	for _, rel := range relationships {
		data.Links = append(data.Links, TemplateLink{
			Parent: names[rel.ParentID],
			Child:  names[rel.ChildID],
			Type:   rel.Type,
		})
	}
	return data
}

func displayName(person Person) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{person.FirstName, person.MiddleName, person.LastName} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

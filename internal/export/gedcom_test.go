package export

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	tree          Tree
	members       []Person
	relationships []Relationship
}

func (f *fakeStore) GetTree(_ context.Context, _ int64) (Tree, error) {
	return f.tree, nil
}

func (f *fakeStore) ListMembers(_ context.Context, _ int64) ([]Person, error) {
	return f.members, nil
}

func (f *fakeStore) ListRelationships(_ context.Context, _ int64) ([]Relationship, error) {
	return f.relationships, nil
}

func date(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func testStore() *fakeStore {
	return &fakeStore{
		tree: Tree{ID: 1, Name: "Smith Family", Owner: "margaret"},
		members: []Person{
			{ID: 1, FirstName: "Henry", LastName: "Smith", Gender: "Male", BirthDate: date(1920, 3, 14), DeathDate: date(1991, 11, 2), BirthPlace: "Boston"},
			{ID: 2, FirstName: "Rose", LastName: "Smith", MaidenName: "Miller", Gender: "Female", BirthDate: date(1925, 7, 1)},
			{ID: 3, FirstName: "Arthur", MiddleName: "James", LastName: "Smith", Gender: "Male", BirthDate: date(1950, 1, 30)},
		},
		relationships: []Relationship{
			{ParentID: 1, ChildID: 3, Type: "Biological"},
			{ParentID: 2, ChildID: 3, Type: "Biological"},
		},
	}
}

func TestExportGEDCOM(t *testing.T) {
	svc := NewService(testStore())

	result, err := svc.Export(context.Background(), Request{TreeID: 1, Format: FormatGEDCOM})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if result.Filename != "Smith-Family.ged" {
		t.Errorf("filename = %q, want Smith-Family.ged", result.Filename)
	}
	if result.MimeType != "text/x-gedcom" {
		t.Errorf("mime type = %q", result.MimeType)
	}

	ged := string(result.Data)

	for _, want := range []string{
		"0 HEAD",
		"2 VERS 5.5",
		"0 @I1@ INDI",
		"1 NAME Henry /Smith/",
		"1 SEX M",
		"2 DATE 14 MAR 1920",
		"2 PLAC Boston",
		"1 DEAT",
		"2 DATE 2 NOV 1991",
		"1 NAME Arthur James /Smith/",
		"0 @F1@ FAM",
		"1 HUSB @I1@",
		"1 WIFE @I2@",
		"1 CHIL @I3@",
		"0 TRLR",
	} {
		if !strings.Contains(ged, want) {
			t.Errorf("gedcom missing %q", want)
		}
	}

	// The child points back at its family, the parents point forward.
	if !strings.Contains(ged, "1 FAMC @F1@") {
		t.Error("gedcom missing child FAMC link")
	}
	if strings.Count(ged, "1 FAMS @F1@") != 2 {
		t.Error("expected both parents to carry a FAMS link")
	}
}

func TestExportGEDCOMEmptyTree(t *testing.T) {
	svc := NewService(&fakeStore{tree: Tree{ID: 1, Name: "Empty"}})

	result, err := svc.Export(context.Background(), Request{TreeID: 1, Format: FormatGEDCOM})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	ged := string(result.Data)
	if !strings.Contains(ged, "0 HEAD") || !strings.Contains(ged, "0 TRLR") {
		t.Error("even an empty tree needs header and trailer")
	}
	if strings.Contains(ged, "INDI") {
		t.Error("empty tree should have no INDI records")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	svc := NewService(testStore())

	if _, err := svc.Export(context.Background(), Request{TreeID: 1, Format: "docx"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestBuildFamiliesGroupsByParentSet(t *testing.T) {
	families := buildFamilies([]Relationship{
		{ParentID: 1, ChildID: 10},
		{ParentID: 2, ChildID: 10},
		{ParentID: 1, ChildID: 11},
		{ParentID: 2, ChildID: 11},
		{ParentID: 3, ChildID: 12},
	})

	if len(families) != 2 {
		t.Fatalf("expected 2 families, got %d", len(families))
	}

	var siblings family
	for _, fam := range families {
		if len(fam.parents) == 2 {
			siblings = fam
		}
	}
	if len(siblings.children) != 2 {
		t.Errorf("children sharing both parents belong in one family, got %v", siblings.children)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith Family", "Smith-Family"},
		{"O'Brien / Descendants", "OBrien--Descendants"},
		{"", "family-tree"},
		{"___", "___"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTreeHTML(t *testing.T) {
	store := testStore()
	html, err := renderTreeHTML(templateData(store.tree, store.members, store.relationships))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, want := range []string{"Smith Family", "Henry Smith", "Rose Smith", "Arthur James Smith", "1920"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("ANCESTRY_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("ANCESTRY_TEST_DATABASE_URL is not set")
	}
	return dsn
}

func openTestStore(t *testing.T) (context.Context, *PostgresStore) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		TRUNCATE users, family_trees, people, tree_members, tree_collaborators,
			relationships, media, password_resets, refresh_sessions, revoked_access_tokens
		RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return ctx, NewPostgresStore(db)
}

func mustCreateUser(t *testing.T, ctx context.Context, s *PostgresStore, username, email string) User {
	t.Helper()
	user, err := s.CreateUser(ctx, User{
		Username:        username,
		Email:           email,
		PasswordHash:    "x",
		IsActive:        true,
		IsEmailVerified: true,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func mustInsertTree(t *testing.T, ctx context.Context, s *PostgresStore, name string, ownerID int64) FamilyTree {
	t.Helper()
	tree, err := s.InsertTree(ctx, FamilyTree{Name: name, OwnerID: ownerID})
	if err != nil {
		t.Fatalf("insert tree %s: %v", name, err)
	}
	return tree
}

func mustInsertMember(t *testing.T, ctx context.Context, s *PostgresStore, treeID int64, firstName, lastName string) Person {
	t.Helper()
	person, err := s.InsertPerson(ctx, Person{FirstName: firstName, LastName: lastName})
	if err != nil {
		t.Fatalf("insert person %s %s: %v", firstName, lastName, err)
	}
	if err := s.InsertTreeMember(ctx, treeID, person.ID); err != nil {
		t.Fatalf("link person %d into tree %d: %v", person.ID, treeID, err)
	}
	return person
}

func TestUpdatePersonPersistsEveryField(t *testing.T) {
	ctx, s := openTestStore(t)

	person, err := s.InsertPerson(ctx, Person{FirstName: "Henry", LastName: "Smith"})
	if err != nil {
		t.Fatalf("insert person: %v", err)
	}

	birth := time.Date(1920, 3, 14, 0, 0, 0, 0, time.UTC)
	death := time.Date(1999, 11, 2, 0, 0, 0, 0, time.UTC)
	bio := "<p>Farmer</p>"
	person.FirstName = "Henry James"
	person.MiddleName = "J"
	person.LastName = "Smythe"
	person.MaidenName = "Brown"
	person.BirthDate = &birth
	person.BirthPlace = "Leeds"
	person.DeathDate = &death
	person.DeathPlace = "York"
	person.Gender = "Male"
	person.Biography = &bio
	person.ProfilePhotoURL = "https://cdn.example.com/henry-new.jpg"

	if err := s.UpdatePerson(ctx, person); err != nil {
		t.Fatalf("update person: %v", err)
	}

	got, err := s.GetPerson(ctx, person.ID)
	if err != nil {
		t.Fatalf("get person: %v", err)
	}
	if got.FirstName != "Henry James" || got.LastName != "Smythe" || got.MaidenName != "Brown" {
		t.Errorf("name fields not persisted: %+v", got)
	}
	if got.ProfilePhotoURL != "https://cdn.example.com/henry-new.jpg" {
		t.Errorf("profile photo url not persisted, got %q", got.ProfilePhotoURL)
	}
	if got.BirthDate == nil || !got.BirthDate.Equal(birth) {
		t.Errorf("birth date not persisted, got %v", got.BirthDate)
	}
	if got.DeathDate == nil || !got.DeathDate.Equal(death) {
		t.Errorf("death date not persisted, got %v", got.DeathDate)
	}
	if got.BirthPlace != "Leeds" || got.DeathPlace != "York" || got.Gender != "Male" {
		t.Errorf("place or gender fields not persisted: %+v", got)
	}
	if got.Biography == nil || *got.Biography != bio {
		t.Errorf("biography not persisted, got %v", got.Biography)
	}
}

func TestListTreeMembersOrderedByName(t *testing.T) {
	ctx, s := openTestStore(t)

	owner := mustCreateUser(t, ctx, s, "owner", "owner@example.com")
	tree := mustInsertTree(t, ctx, s, "Smith Family", owner.ID)

	// Insert out of display order on purpose.
	mustInsertMember(t, ctx, s, tree.ID, "Rose", "Smith")
	mustInsertMember(t, ctx, s, tree.ID, "Arthur", "Brown")
	mustInsertMember(t, ctx, s, tree.ID, "Henry", "Smith")
	mustInsertMember(t, ctx, s, tree.ID, "Zelda", "Brown")

	members, err := s.ListTreeMembers(ctx, tree.ID)
	if err != nil {
		t.Fatalf("list tree members: %v", err)
	}

	want := [][2]string{
		{"Arthur", "Brown"},
		{"Zelda", "Brown"},
		{"Henry", "Smith"},
		{"Rose", "Smith"},
	}
	if len(members) != len(want) {
		t.Fatalf("expected %d members, got %d", len(want), len(members))
	}
	for i, pair := range want {
		if members[i].FirstName != pair[0] || members[i].LastName != pair[1] {
			t.Errorf("position %d: expected %s %s, got %s %s",
				i, pair[0], pair[1], members[i].FirstName, members[i].LastName)
		}
	}
}

func TestTreeListingsOrderedByCreationDescending(t *testing.T) {
	ctx, s := openTestStore(t)

	owner := mustCreateUser(t, ctx, s, "owner", "owner@example.com")
	viewer := mustCreateUser(t, ctx, s, "viewer", "viewer@example.com")

	oldest := mustInsertTree(t, ctx, s, "Oldest", owner.ID)
	middle := mustInsertTree(t, ctx, s, "Middle", owner.ID)
	newest := mustInsertTree(t, ctx, s, "Newest", owner.ID)

	// Spread created_at so the ordering is unambiguous.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, treeID := range []int64{oldest.ID, middle.ID, newest.ID} {
		if _, err := s.DB().ExecContext(ctx,
			`UPDATE family_trees SET created_at=$2 WHERE id=$1`,
			treeID, base.AddDate(0, 0, i)); err != nil {
			t.Fatalf("backdate tree %d: %v", treeID, err)
		}
	}

	owned, err := s.ListOwnedTrees(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list owned trees: %v", err)
	}
	wantNames := []string{"Newest", "Middle", "Oldest"}
	if len(owned) != len(wantNames) {
		t.Fatalf("expected %d owned trees, got %d", len(wantNames), len(owned))
	}
	for i, name := range wantNames {
		if owned[i].Name != name {
			t.Errorf("owned position %d: expected %s, got %s", i, name, owned[i].Name)
		}
	}

	for _, treeID := range []int64{oldest.ID, newest.ID} {
		if _, err := s.InsertCollaborator(ctx, Collaborator{
			TreeID: treeID, UserID: viewer.ID, Permission: "View",
		}); err != nil {
			t.Fatalf("grant on tree %d: %v", treeID, err)
		}
	}

	shared, err := s.ListSharedTrees(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list shared trees: %v", err)
	}
	if len(shared) != 2 {
		t.Fatalf("expected 2 shared trees, got %d", len(shared))
	}
	if shared[0].Name != "Newest" || shared[1].Name != "Oldest" {
		t.Errorf("shared trees out of order: %s, %s", shared[0].Name, shared[1].Name)
	}
}

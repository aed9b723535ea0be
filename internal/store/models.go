package store

import "time"

type User struct {
	ID                    int64
	Username              string
	Email                 string
	PasswordHash          string
	IsActive              bool
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
}

type FamilyTree struct {
	ID            int64
	Name          string
	Description   string
	OwnerID       int64
	OwnerUsername string
	IsPublic      bool
	MemberCount   int
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

type Person struct {
	ID              int64
	FirstName       string
	MiddleName      string
	LastName        string
	MaidenName      string
	BirthDate       *time.Time
	BirthPlace      string
	DeathDate       *time.Time
	DeathPlace      string
	Gender          string
	Biography       *string
	ProfilePhotoURL string
	CreatedAt       time.Time
}

// TreeMember links a person into a tree. Composite key, no identity of its
// own; the person row outlives the association.
type TreeMember struct {
	TreeID   int64
	PersonID int64
}

type Relationship struct {
	ID       int64
	ParentID int64
	ChildID  int64
	Type     string
}

type Collaborator struct {
	ID         int64
	TreeID     int64
	UserID     int64
	Permission string
	InvitedAt  time.Time
	// Joined user fields for listings
	Username string
	Email    string
}

type Media struct {
	ID          int64
	PersonID    int64
	FileName    string
	StorageKey  string
	ContentHash string
	Caption     string
	MediaType   string
	UploadedAt  time.Time
}

// PersonSearchRow is a search hit joined with the tree it was found in.
type PersonSearchRow struct {
	Person
	TreeID   int64
	TreeName string
}

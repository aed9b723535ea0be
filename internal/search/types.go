package search

import "fmt"

// PersonRecord is the indexed document for one person in one tree. A person
// belonging to several trees is indexed once per tree so results can be
// filtered by what the viewer may see.
type PersonRecord struct {
	ID         string `json:"id"`
	PersonID   int64  `json:"personId"`
	TreeID     int64  `json:"treeId"`
	TreeName   string `json:"treeName"`
	OwnerID    int64  `json:"ownerId"`
	IsPublic   bool   `json:"isPublic"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MaidenName string `json:"maidenName"`
	BirthYear  int    `json:"birthYear,omitempty"`
	DeathYear  int    `json:"deathYear,omitempty"`
}

// DocumentID builds the per-tree document id for a person.
func DocumentID(personID, treeID int64) string {
	return fmt.Sprintf("p%d-t%d", personID, treeID)
}

type Query struct {
	Text string
	// ViewerID scopes results to trees the viewer owns, public trees, and
	// the trees listed in SharedTreeIDs.
	ViewerID      int64
	SharedTreeIDs []int64
	Limit         int
}

type Result struct {
	PersonID   int64  `json:"personId"`
	TreeID     int64  `json:"treeId"`
	TreeName   string `json:"treeName"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	MaidenName string `json:"maidenName,omitempty"`
	BirthYear  int    `json:"birthYear,omitempty"`
	DeathYear  int    `json:"deathYear,omitempty"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Package export renders family trees as GEDCOM files or PDF summaries.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatPDF    Format = "pdf"
	FormatGEDCOM Format = "gedcom"
)

// Request contains parameters for an export operation
type Request struct {
	TreeID int64
	Format Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// Person is one individual as the exporter sees it.
type Person struct {
	ID         int64
	FirstName  string
	MiddleName string
	LastName   string
	MaidenName string
	Gender     string
	BirthDate  *time.Time
	DeathDate  *time.Time
	BirthPlace string
	DeathPlace string
}

// Relationship is a parent-child link between two tree members.
type Relationship struct {
	ParentID int64
	ChildID  int64
	Type     string
}

// Tree is the exported tree's metadata.
type Tree struct {
	ID          int64
	Name        string
	Description string
	Owner       string
}

var (
	// ErrUnknownFormat indicates the requested format is not supported.
	ErrUnknownFormat = errors.New("export format not supported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)

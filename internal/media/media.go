// Package media stores uploaded files content-addressed: the SHA-256 of the
// bytes names the blob, so identical uploads share one physical object.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

const MaxFileSize = 10 * 1024 * 1024 // 10 MB

const (
	CategoryPhoto    = "Photo"
	CategoryDocument = "Document"
	CategoryVideo    = "Video"
)

var (
	ErrInvalidFileType  = errors.New("file type not allowed for media category")
	ErrFileTooLarge     = errors.New("file exceeds maximum size")
	ErrMissingExtension = errors.New("file must have an extension")
)

// Storage is a blob store keyed by content-derived paths.
type Storage interface {
	// Put writes the blob unless one already exists under key. It reports
	// whether a new physical object was written.
	Put(ctx context.Context, key string, content []byte, contentType string) (bool, error)
	// Get reads the blob back in full.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

var allowedImageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".bmp": {},
}

var allowedDocumentExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".txt": {}, ".odt": {},
}

var allowedVideoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".webm": {},
}

// ValidCategory reports whether the media category belongs to the closed set.
func ValidCategory(category string) bool {
	switch category {
	case "Photo", "Document", "Video":
		return true
	default:
		return false
	}
}

// ValidateUpload checks size and the extension allow-list for the declared
// category before any bytes are hashed or written.
func ValidateUpload(fileName, category string, size int64) error {
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		return ErrMissingExtension
	}
	var allowed map[string]struct{}
	switch category {
	case "Photo":
		allowed = allowedImageExtensions
	case "Document":
		allowed = allowedDocumentExtensions
	case "Video":
		allowed = allowedVideoExtensions
	default:
		return ErrInvalidFileType
	}
	if _, ok := allowed[ext]; !ok {
		return ErrInvalidFileType
	}
	return nil
}

// HashContent returns the lowercase hex SHA-256 digest of the upload.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ObjectKey builds the storage path for a person's blob. The hash-based name
// is what makes re-uploads of identical content a no-op write.
func ObjectKey(personID int64, hash, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("media/%d/%s%s", personID, hash, ext)
}

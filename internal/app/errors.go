package app

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// DomainError is an expected, recoverable outcome surfaced to the caller
// with a closed vocabulary of codes. Unexpected store or I/O failures are
// wrapped with %w instead and mapped to a generic 500.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NotFound family

func errTreeNotFound() *DomainError {
	return domainError(http.StatusNotFound, "TREE_NOT_FOUND", "Family tree not found", nil)
}

func errPersonNotFoundInTree() *DomainError {
	return domainError(http.StatusNotFound, "PERSON_NOT_FOUND_IN_TREE", "Person not found in this tree", nil)
}

func errPersonNotFound() *DomainError {
	return domainError(http.StatusNotFound, "PERSON_NOT_FOUND", "Person not found", nil)
}

func errCollaboratorNotFound() *DomainError {
	return domainError(http.StatusNotFound, "COLLABORATOR_NOT_FOUND", "Collaborator not found", nil)
}

func errUserNotFound() *DomainError {
	return domainError(http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
}

func errRelationshipNotFound() *DomainError {
	return domainError(http.StatusNotFound, "RELATIONSHIP_NOT_FOUND", "Relationship not found", nil)
}

func errMediaNotFound() *DomainError {
	return domainError(http.StatusNotFound, "MEDIA_NOT_FOUND", "Media not found", nil)
}

// Permission family

func errNoViewAccess() *DomainError {
	return domainError(http.StatusForbidden, "NO_VIEW_ACCESS", "You don't have access to this tree", nil)
}

func errNoEditAccess() *DomainError {
	return domainError(http.StatusForbidden, "NO_EDIT_ACCESS", "You don't have permission to edit this tree", nil)
}

func errNoManageAccess() *DomainError {
	return domainError(http.StatusForbidden, "NO_MANAGE_ACCESS", "You don't have permission to manage collaborators", nil)
}

func errNotOwner() *DomainError {
	return domainError(http.StatusForbidden, "NOT_OWNER", "Only the owner can delete this tree", nil)
}

// Validation family

func errInvalidDateRange() *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_DATE_RANGE", "Death date cannot be before birth date", nil)
}

func errHasExistingRelationships() *DomainError {
	return domainError(http.StatusBadRequest, "HAS_EXISTING_RELATIONSHIPS",
		"Cannot remove person with existing relationships. Remove relationships first.", nil)
}

func errAlreadyCollaborator() *DomainError {
	return domainError(http.StatusBadRequest, "ALREADY_COLLABORATOR", "User is already a collaborator", nil)
}

func errCannotShareWithOwner() *DomainError {
	return domainError(http.StatusBadRequest, "CANNOT_SHARE_WITH_OWNER", "Cannot share tree with its owner", nil)
}

func errInvalidPermission() *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_PERMISSION", "Permission must be View, Edit or Admin", nil)
}

func errInvalidFileType(category string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_FILE_TYPE", "Invalid file type for "+category, nil)
}

func errFileTooLarge() *DomainError {
	return domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File size exceeds maximum limit of 10 MB", nil)
}

func errMissingFileExtension() *DomainError {
	return domainError(http.StatusBadRequest, "MISSING_FILE_EXTENSION", "File must have an extension", nil)
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

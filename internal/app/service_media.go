package app

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"ancestry/api/internal/access"
	"ancestry/api/internal/media"
	"ancestry/api/internal/store"
)

type MediaUpload struct {
	FileName string
	Category string
	Caption  string
	Content  []byte
}

func (s *Service) UploadMedia(ctx context.Context, userID, treeID, personID int64, upload MediaUpload) (store.Media, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Media{}, err
	}
	if !access.CanEdit(level) {
		return store.Media{}, errNoEditAccess()
	}
	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return store.Media{}, err
	}

	category := strings.TrimSpace(upload.Category)
	if category == "" {
		category = media.CategoryPhoto
	}
	if !media.ValidCategory(category) {
		return store.Media{}, errValidation("unknown media category")
	}
	if err := media.ValidateUpload(upload.FileName, category, int64(len(upload.Content))); err != nil {
		switch {
		case errors.Is(err, media.ErrMissingExtension):
			return store.Media{}, errMissingFileExtension()
		case errors.Is(err, media.ErrFileTooLarge):
			return store.Media{}, errFileTooLarge()
		case errors.Is(err, media.ErrInvalidFileType):
			return store.Media{}, errInvalidFileType(category)
		default:
			return store.Media{}, err
		}
	}

	hash := media.HashContent(upload.Content)
	key := media.ObjectKey(personID, hash, upload.FileName)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(upload.FileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// An identical blob already under the person's prefix is not rewritten,
	// but each upload gets its own record.
	if _, err := s.blobs.Put(ctx, key, upload.Content, contentType); err != nil {
		return store.Media{}, fmt.Errorf("store blob: %w", err)
	}

	item, err := s.store.InsertMedia(ctx, store.Media{
		PersonID:    personID,
		FileName:    strings.TrimSpace(upload.FileName),
		StorageKey:  key,
		ContentHash: hash,
		Caption:     strings.TrimSpace(upload.Caption),
		MediaType:   category,
	})
	if err != nil {
		return store.Media{}, fmt.Errorf("insert media: %w", err)
	}

	s.audit("media uploaded", "actor", userID, "person", personID, "tree", treeID, "media", item.ID)
	return item, nil
}

func (s *Service) ListMedia(ctx context.Context, userID, treeID, personID int64) ([]store.Media, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return nil, err
	}
	if !access.CanView(level) {
		return nil, errNoViewAccess()
	}
	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return nil, err
	}

	items, err := s.store.ListPersonMedia(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// DeleteMedia removes the record and the blob. A blob that already vanished
// from storage does not fail the delete.
func (s *Service) DeleteMedia(ctx context.Context, userID, treeID, personID, mediaID int64) error {
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

	item, err := s.store.GetMedia(ctx, mediaID)
	if err != nil {
		if isNoRows(err) {
			return errMediaNotFound()
		}
		return fmt.Errorf("get media: %w", err)
	}
	if item.PersonID != personID {
		return errMediaNotFound()
	}

	if err := s.blobs.Delete(ctx, item.StorageKey); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if err := s.store.DeleteMedia(ctx, mediaID); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}

	s.audit("media deleted", "actor", userID, "person", personID, "tree", treeID, "media", mediaID)
	return nil
}

// FetchMedia returns the record and blob bytes for download.
func (s *Service) FetchMedia(ctx context.Context, userID, treeID, personID, mediaID int64) (store.Media, []byte, error) {
	_, level, err := s.resolveTreeAccess(ctx, treeID, userID)
	if err != nil {
		return store.Media{}, nil, err
	}
	if !access.CanView(level) {
		return store.Media{}, nil, errNoViewAccess()
	}
	if err := s.requireTreeMember(ctx, treeID, personID); err != nil {
		return store.Media{}, nil, err
	}

	item, err := s.store.GetMedia(ctx, mediaID)
	if err != nil {
		if isNoRows(err) {
			return store.Media{}, nil, errMediaNotFound()
		}
		return store.Media{}, nil, fmt.Errorf("get media: %w", err)
	}
	if item.PersonID != personID {
		return store.Media{}, nil, errMediaNotFound()
	}

	content, err := s.blobs.Get(ctx, item.StorageKey)
	if err != nil {
		return store.Media{}, nil, fmt.Errorf("read blob: %w", err)
	}
	return item, content, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// TagStore is the persistence the tag service needs
type TagStore interface {
	ListTags(ctx context.Context, tagType models.TagType) ([]models.Tag, error)
	GetTag(ctx context.Context, id int64) (*models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
	UpdateTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, id int64) error
}

// TagRequest is the payload for creating or replacing a tag. Slug defaults to the slugified name.
type TagRequest struct {
	Name string         `json:"name" validate:"required"`
	Slug string         `json:"slug"`
	Type models.TagType `json:"type" validate:"required"`
}

// TagService handles tag administration
type TagService struct {
	store TagStore
}

func NewTagService(store TagStore) *TagService {
	return &TagService{store: store}
}

func tagStoreError(err error, id int64, slug string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.New(apperr.NotFound, "tag not found: %d", id)
	case errors.Is(err, store.ErrDuplicate):
		return apperr.New(apperr.Conflict, "tag slug already exists: %s", slug)
	}
	return fmt.Errorf("tag store: %w", err)
}

func (s *TagService) build(req *TagRequest) (*models.Tag, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, apperr.InvalidFields("type")
	}

	slug := req.Slug
	if slug == "" {
		slug = req.Name
	}
	slug = util.Slugify(slug)
	if slug == "" {
		return nil, apperr.InvalidFields("slug")
	}

	return &models.Tag{Name: strings.TrimSpace(req.Name), Slug: slug, Type: req.Type}, nil
}

// List returns tags, optionally of one type
func (s *TagService) List(ctx context.Context, tagType string) ([]models.Tag, error) {
	t := models.TagType(strings.ToUpper(tagType))
	if t != "" && !t.Valid() {
		return nil, apperr.InvalidFields("type")
	}

	tags, err := s.store.ListTags(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	return tags, nil
}

// Create stores a tag with a unique slug
func (s *TagService) Create(ctx context.Context, req *TagRequest) (*models.Tag, error) {
	tag, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, tagStoreError(err, 0, tag.Slug)
	}
	return tag, nil
}

// Update replaces a tag
func (s *TagService) Update(ctx context.Context, id int64, req *TagRequest) (*models.Tag, error) {
	tag, err := s.build(req)
	if err != nil {
		return nil, err
	}
	tag.ID = id
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return nil, tagStoreError(err, id, tag.Slug)
	}
	return tag, nil
}

// Delete removes a tag and detaches it from products
func (s *TagService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTag(ctx, id); err != nil {
		return tagStoreError(err, id, "")
	}
	return nil
}

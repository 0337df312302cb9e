package store

import (
	"context"

	"storefront/internal/models"
)

// ListTags returns all tags, optionally restricted to one type
func (s *Store) ListTags(ctx context.Context, tagType models.TagType) ([]models.Tag, error) {
	tags := []models.Tag{}
	var err error
	if tagType == "" {
		err = s.db.SelectContext(ctx, &tags, "SELECT id, name, slug, type FROM tags ORDER BY type, name")
	} else {
		err = s.db.SelectContext(ctx, &tags,
			"SELECT id, name, slug, type FROM tags WHERE type = $1 ORDER BY name", tagType)
	}
	return tags, err
}

// GetTag retrieves a tag by ID
func (s *Store) GetTag(ctx context.Context, id int64) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.GetContext(ctx, &tag, "SELECT id, name, slug, type FROM tags WHERE id = $1", id); err != nil {
		return nil, mapError(err)
	}
	return &tag, nil
}

// CreateTag inserts a tag; slugs are unique
func (s *Store) CreateTag(ctx context.Context, tag *models.Tag) error {
	err := s.db.GetContext(ctx, &tag.ID,
		"INSERT INTO tags (name, slug, type) VALUES ($1, $2, $3) RETURNING id",
		tag.Name, tag.Slug, tag.Type)
	return mapError(err)
}

// UpdateTag replaces a tag's fields
func (s *Store) UpdateTag(ctx context.Context, tag *models.Tag) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tags SET name = $1, slug = $2, type = $3 WHERE id = $4",
		tag.Name, tag.Slug, tag.Type, tag.ID)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTag removes a tag and its product links
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = $1", id)
	if err != nil {
		return mapError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

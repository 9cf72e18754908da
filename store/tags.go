package store

import (
	"context"
	"errors"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
)

var tagOrdering = map[string]string{
	"name":       "tags.name",
	"created_at": "tags.created_at",
}

func duplicateTag(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return access.Invalid("name", "tag with this name already exists.")
	}
	return err
}

func tagNameTaken(tx *gorm.DB, name string, exceptID uint) error {
	var count int64
	if err := tx.Model(&models.Tag{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return access.Invalid("name", "tag with this name already exists.")
	}
	return nil
}

func (s *Store) CreateTag(ctx context.Context, tag *models.Tag) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tagNameTaken(tx, tag.Name, 0); err != nil {
			return err
		}
		return duplicateTag(tx.Create(tag).Error)
	})
}

func (s *Store) TagByID(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := s.conn(ctx).First(&tag, id).Error; err != nil {
		return nil, lookup(err, "tag")
	}
	return &tag, nil
}

func (s *Store) ListTags(ctx context.Context, search, ordering string) ([]models.Tag, error) {
	db := s.conn(ctx).Model(&models.Tag{})
	if search != "" {
		db = db.Where("LOWER(tags.name) LIKE ?", likePattern(search))
	}
	var tags []models.Tag
	err := db.Order(orderBy(ordering, tagOrdering, "tags.name")).Find(&tags).Error
	return tags, err
}

func (s *Store) UpdateTag(ctx context.Context, tag *models.Tag) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tagNameTaken(tx, tag.Name, tag.ID); err != nil {
			return err
		}
		return duplicateTag(tx.Model(tag).Select("Name", "Color").Updates(tag).Error)
	})
}

// DeleteTag removes the tag and detaches it from every task.
func (s *Store) DeleteTag(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, id).Error; err != nil {
			return lookup(err, "tag")
		}
		if err := tx.Where("tag_id = ?", id).Delete(&models.TaskTag{}).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
}

package store

import (
	"context"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
)

func AttachmentTarget(a *models.TaskAttachment) access.Target {
	return access.Target{Kind: access.KindAttachment, Project: ACLOf(&a.Task.Project)}
}

func (s *Store) CreateAttachment(ctx context.Context, a *models.TaskAttachment) error {
	if err := s.conn(ctx).Omit("Task", "UploadedBy").Create(a).Error; err != nil {
		return err
	}
	loaded, err := s.AttachmentByID(ctx, a.ID)
	if err != nil {
		return err
	}
	*a = *loaded
	return nil
}

func (s *Store) AttachmentByID(ctx context.Context, id uint) (*models.TaskAttachment, error) {
	var a models.TaskAttachment
	err := s.conn(ctx).Preload("UploadedBy").Scopes(withTask).First(&a, id).Error
	if err != nil {
		return nil, lookup(err, "attachment")
	}
	return &a, nil
}

// ListAttachments returns the attachments of one task, newest first.
func (s *Store) ListAttachments(ctx context.Context, taskID uint) ([]models.TaskAttachment, error) {
	var list []models.TaskAttachment
	err := s.conn(ctx).
		Preload("UploadedBy").
		Where("task_id = ?", taskID).
		Order("task_attachments.uploaded_at DESC, task_attachments.id DESC").
		Find(&list).Error
	return list, err
}

// DeleteAttachment removes the row and returns its blob key.
func (s *Store) DeleteAttachment(ctx context.Context, id uint) (string, error) {
	var a models.TaskAttachment
	if err := s.conn(ctx).Select("id", "file").First(&a, id).Error; err != nil {
		return "", lookup(err, "attachment")
	}
	if err := s.conn(ctx).Delete(&a).Error; err != nil {
		return "", err
	}
	return a.File, nil
}

// UpdateAttachment swaps the stored file of an attachment and returns the
// key it replaced.
func (s *Store) UpdateAttachment(ctx context.Context, a *models.TaskAttachment) (string, error) {
	var previous string
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.TaskAttachment
		if err := tx.Clauses(forUpdate()).Select("id", "file").First(&current, a.ID).Error; err != nil {
			return lookup(err, "attachment")
		}
		previous = current.File
		return tx.Model(a).Select("File", "Size", "ContentType").Updates(a).Error
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

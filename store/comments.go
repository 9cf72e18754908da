package store

import (
	"context"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
)

// CommentTarget resolves the facts the policy needs about a comment
// loaded with Task.Project.Members.
func CommentTarget(c *models.Comment) access.Target {
	t := access.Target{Kind: access.KindComment, Project: ACLOf(&c.Task.Project)}
	if c.AuthorID != nil {
		t.AuthorID = *c.AuthorID
	}
	return t
}

func (s *Store) CreateComment(ctx context.Context, c *models.Comment) error {
	if err := s.conn(ctx).Omit("Task", "Author").Create(c).Error; err != nil {
		return err
	}
	loaded, err := s.CommentByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *loaded
	return nil
}

func (s *Store) CommentByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	err := s.conn(ctx).
		Preload("Author").
		Scopes(withTask).
		First(&c, id).Error
	if err != nil {
		return nil, lookup(err, "comment")
	}
	return &c, nil
}

// ListComments returns the comments of one task, oldest first.
func (s *Store) ListComments(ctx context.Context, taskID uint) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.conn(ctx).
		Preload("Author").
		Where("task_id = ?", taskID).
		Order("comments.created_at, comments.id").
		Find(&comments).Error
	return comments, err
}

func (s *Store) UpdateComment(ctx context.Context, c *models.Comment) error {
	return s.conn(ctx).Model(c).Select("Content").Updates(c).Error
}

func (s *Store) DeleteComment(ctx context.Context, id uint) error {
	res := s.conn(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return access.NotFound("comment")
	}
	return nil
}

// withTask is shared by the comment and attachment queries that need the
// owning project's ACL.
func withTask(db *gorm.DB) *gorm.DB {
	return db.Preload("Task").Preload("Task.Project").Preload("Task.Project.Members")
}

package store

import (
	"context"
	"fmt"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var taskOrdering = map[string]string{
	"created_at": "tasks.created_at",
	"updated_at": "tasks.updated_at",
	"due_date":   "tasks.due_date",
	"priority":   "tasks.priority",
	"status":     "tasks.status",
}

// TaskLinks carries the many-to-many sets of a task. A nil slice means
// "leave unchanged" on update.
type TaskLinks struct {
	AssigneeIDs *[]uint
	TagIDs      *[]uint
}

func (s *Store) CreateTask(ctx context.Context, t *models.Task, links TaskLinks) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
			return err
		}
		return replaceLinks(tx, t.ID, links)
	})
	if err != nil {
		return err
	}
	return s.reloadTask(ctx, t)
}

// UpdateTask saves the writable task fields and replaces whichever link
// sets are provided.
func (s *Store) UpdateTask(ctx context.Context, t *models.Task, links TaskLinks) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(t).
			Select("Title", "Description", "ProjectID", "Status", "Priority", "DueDate").
			Updates(t).Error
		if err != nil {
			return err
		}
		return replaceLinks(tx, t.ID, links)
	})
	if err != nil {
		return err
	}
	return s.reloadTask(ctx, t)
}

func (s *Store) reloadTask(ctx context.Context, t *models.Task) error {
	loaded, err := s.TaskByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = *loaded
	return nil
}

func replaceLinks(tx *gorm.DB, taskID uint, links TaskLinks) error {
	if links.AssigneeIDs != nil {
		ids := dedupe(*links.AssigneeIDs)
		if err := requireRows(tx, "users", "assignees", ids); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			rows := make([]models.TaskAssignee, len(ids))
			for i, id := range ids {
				rows[i] = models.TaskAssignee{TaskID: taskID, UserID: id}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
	}
	if links.TagIDs != nil {
		ids := dedupe(*links.TagIDs)
		if err := requireRows(tx, "tags", "tags", ids); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskTag{}).Error; err != nil {
			return err
		}
		if len(ids) > 0 {
			rows := make([]models.TaskTag, len(ids))
			for i, id := range ids {
				rows[i] = models.TaskTag{TaskID: taskID, TagID: id}
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func requireRows(tx *gorm.DB, table, field string, ids []uint) error {
	missing, err := missingIDs(tx, table, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return access.Invalid(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing[0]))
	}
	return nil
}

func preloadTask(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Project").
		Preload("Project.Owner").
		Preload("Project.Members").
		Preload("Assignees", func(db *gorm.DB) *gorm.DB { return db.Order("users.id") }).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name") }).
		Preload("CreatedBy")
}

// TaskByID loads a task with its project (and members), assignees, tags
// and creator.
func (s *Store) TaskByID(ctx context.Context, id uint) (*models.Task, error) {
	var t models.Task
	if err := s.conn(ctx).Scopes(preloadTask).First(&t, id).Error; err != nil {
		return nil, lookup(err, "task")
	}
	return &t, nil
}

// ListTasks returns the tasks of projects visible to the identity,
// narrowed by the filter.
func (s *Store) ListTasks(ctx context.Context, id access.Identity, f models.TaskFilter) ([]models.Task, error) {
	db := s.conn(ctx).Model(&models.Task{}).Scopes(access.VisibleTasks(id), preloadTask)
	if f.ProjectID != 0 {
		db = db.Where("tasks.project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		db = db.Where("tasks.status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("tasks.priority = ?", f.Priority)
	}
	if f.AssigneeID != 0 {
		assigned := s.conn(ctx).Session(&gorm.Session{NewDB: true}).
			Model(&models.TaskAssignee{}).
			Select("task_id").
			Where("user_id = ?", f.AssigneeID)
		db = db.Where("tasks.id IN (?)", assigned)
	}
	if f.Search != "" {
		pattern := likePattern(f.Search)
		db = db.Where("LOWER(tasks.title) LIKE ? OR LOWER(COALESCE(tasks.description, '')) LIKE ?", pattern, pattern)
	}

	var tasks []models.Task
	err := db.Order(orderBy(f.Ordering, taskOrdering, "tasks.created_at DESC")).Find(&tasks).Error
	return tasks, err
}

type TaskCounts struct {
	Comments    int64
	Attachments int64
}

func (s *Store) CountsForTask(ctx context.Context, taskID uint) (TaskCounts, error) {
	var c TaskCounts
	db := s.conn(ctx)
	if err := db.Model(&models.Comment{}).Where("task_id = ?", taskID).Count(&c.Comments).Error; err != nil {
		return c, err
	}
	err := db.Model(&models.TaskAttachment{}).Where("task_id = ?", taskID).Count(&c.Attachments).Error
	return c, err
}

// DeleteTask removes the task with its comments and attachments and
// returns the blob keys of the removed attachments.
func (s *Store) DeleteTask(ctx context.Context, id uint) ([]string, error) {
	var blobs []string
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Task
		if err := tx.Clauses(forUpdate()).Select("id").First(&t, id).Error; err != nil {
			return lookup(err, "task")
		}
		var err error
		blobs, err = deleteTasks(tx, []uint{id})
		return err
	})
	return blobs, err
}

func deleteTasks(tx *gorm.DB, taskIDs []uint) ([]string, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var blobs []string
	if err := tx.Model(&models.TaskAttachment{}).Where("task_id IN ?", taskIDs).Pluck("file", &blobs).Error; err != nil {
		return nil, err
	}

	steps := []struct {
		what  string
		model any
		where string
	}{
		{"comments", &models.Comment{}, "task_id IN ?"},
		{"attachments", &models.TaskAttachment{}, "task_id IN ?"},
		{"assignees", &models.TaskAssignee{}, "task_id IN ?"},
		{"tags", &models.TaskTag{}, "task_id IN ?"},
		{"tasks", &models.Task{}, "id IN ?"},
	}
	for _, st := range steps {
		if err := tx.Where(st.where, taskIDs).Delete(st.model).Error; err != nil {
			return nil, fmt.Errorf("delete %s: %w", st.what, err)
		}
	}
	return blobs, nil
}

package store

import (
	"context"
	"fmt"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectQuery struct {
	Search   string
	Ordering string
}

var projectOrdering = map[string]string{
	"created_at": "projects.created_at",
	"updated_at": "projects.updated_at",
	"title":      "projects.title",
}

// CreateProject inserts p (its OwnerID must be set) together with the
// initial member set.
func (s *Store) CreateProject(ctx context.Context, p *models.Project, memberIDs []uint) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}
		return replaceMembers(tx, p.ID, memberIDs)
	})
	if err != nil {
		return err
	}
	return s.reloadProject(ctx, p)
}

func (s *Store) reloadProject(ctx context.Context, p *models.Project) error {
	loaded, err := s.ProjectByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *loaded
	return nil
}

func replaceMembers(tx *gorm.DB, projectID uint, memberIDs []uint) error {
	memberIDs = dedupe(memberIDs)
	missing, err := missingIDs(tx, "users", memberIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return access.Invalid("members", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", missing[0]))
	}
	if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		return nil
	}
	rows := make([]models.ProjectMember, len(memberIDs))
	for i, uid := range memberIDs {
		rows[i] = models.ProjectMember{ProjectID: projectID, UserID: uid}
	}
	return tx.Create(&rows).Error
}

func (s *Store) ProjectByID(ctx context.Context, id uint) (*models.Project, error) {
	var p models.Project
	err := s.conn(ctx).
		Preload("Owner").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("users.id") }).
		First(&p, id).Error
	if err != nil {
		return nil, lookup(err, "project")
	}
	return &p, nil
}

// ProjectACL loads only the ownership facts of a project.
func (s *Store) ProjectACL(ctx context.Context, id uint) (access.ProjectACL, error) {
	return projectACL(s.conn(ctx), id)
}

func projectACL(tx *gorm.DB, id uint) (access.ProjectACL, error) {
	var p models.Project
	if err := tx.Select("id", "owner_id").First(&p, id).Error; err != nil {
		return access.ProjectACL{}, lookup(err, "project")
	}
	acl := access.ProjectACL{OwnerID: p.OwnerID}
	err := tx.Model(&models.ProjectMember{}).Where("project_id = ?", id).Order("user_id").Pluck("user_id", &acl.MemberIDs).Error
	return acl, err
}

// ListVisibleProjects returns the projects the identity owns or belongs
// to, newest first unless q.Ordering says otherwise.
func (s *Store) ListVisibleProjects(ctx context.Context, id access.Identity, q ProjectQuery) ([]models.Project, error) {
	db := s.conn(ctx).Model(&models.Project{}).Scopes(access.VisibleProjects(id)).Preload("Owner")
	if q.Search != "" {
		pattern := likePattern(q.Search)
		db = db.Where("LOWER(projects.title) LIKE ? OR LOWER(COALESCE(projects.description, '')) LIKE ?", pattern, pattern)
	}
	var projects []models.Project
	err := db.Order(orderBy(q.Ordering, projectOrdering, "projects.created_at DESC")).Find(&projects).Error
	return projects, err
}

// TaskCounts returns the number of tasks per project id.
func (s *Store) TaskCounts(ctx context.Context, projectIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(projectIDs))
	if len(projectIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ProjectID uint
		N         int64
	}
	err := s.conn(ctx).Model(&models.Task{}).
		Select("project_id, COUNT(*) AS n").
		Where("project_id IN ?", projectIDs).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ProjectID] = r.N
	}
	return counts, nil
}

// UpdateProject saves title and description, and replaces the member
// set when memberIDs is non-nil.
func (s *Store) UpdateProject(ctx context.Context, p *models.Project, memberIDs *[]uint) error {
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(p).Select("Title", "Description").Updates(p).Error; err != nil {
			return err
		}
		if memberIDs == nil {
			return nil
		}
		return replaceMembers(tx, p.ID, *memberIDs)
	})
	if err != nil {
		return err
	}
	return s.reloadProject(ctx, p)
}

// AddMember attaches the user to the project. Adding an existing member
// is a no-op, so concurrent adds converge.
func (s *Store) AddMember(ctx context.Context, projectID, userID uint) (*models.User, error) {
	var u models.User
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, projectID); err != nil {
			return err
		}
		if err := tx.First(&u, userID).Error; err != nil {
			return lookup(err, "User")
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProjectMember{ProjectID: projectID, UserID: userID}).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RemoveMember detaches the user from the project. Removing a non-member
// is a no-op. The owner rule is enforced by access.AuthorizeRemoveMember.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID uint) (*models.User, error) {
	var u models.User
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, projectID); err != nil {
			return err
		}
		if err := tx.First(&u, userID).Error; err != nil {
			return lookup(err, "User")
		}
		return tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectMember{}).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func lockProject(tx *gorm.DB, projectID uint) error {
	var p models.Project
	err := tx.Clauses(forUpdate()).Select("id").First(&p, projectID).Error
	return lookup(err, "project")
}

// DeleteProject removes the project, its tasks and everything hanging
// off them. It returns the blob keys of the removed attachments.
func (s *Store) DeleteProject(ctx context.Context, id uint) ([]string, error) {
	var blobs []string
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProject(tx, id); err != nil {
			return err
		}
		var err error
		blobs, err = deleteProject(tx, id)
		return err
	})
	return blobs, err
}

func deleteProject(tx *gorm.DB, id uint) ([]string, error) {
	var taskIDs []uint
	if err := tx.Model(&models.Task{}).Where("project_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
		return nil, err
	}
	blobs, err := deleteTasks(tx, taskIDs)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("project_id = ?", id).Delete(&models.ProjectMember{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&models.Project{}, id).Error; err != nil {
		return nil, err
	}
	return blobs, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmanager/access"
	"taskmanager/models"

	"gorm.io/gorm"
)

// checkUnique reports email/username collisions with users other than
// exceptID as field validation errors.
func checkUnique(tx *gorm.DB, u *models.User, exceptID uint) error {
	v := access.Validation{}
	var count int64
	if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", u.Email, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		v.Add("email", "user with this email already exists.")
	}
	if err := tx.Model(&models.User{}).Where("username = ? AND id <> ?", u.Username, exceptID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		v.Add("username", "A user with that username already exists.")
	}
	return v.Err()
}

func duplicateUser(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &access.Error{Code: access.CodeValidation, Message: "user with these credentials already exists."}
	}
	return err
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, u, 0); err != nil {
			return err
		}
		return duplicateUser(tx.Create(u).Error)
	})
}

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, lookup(err, "user")
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, lookup(err, "user")
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.conn(ctx).Order("id").Find(&users).Error
	return users, err
}

// UpdateUser saves profile fields. Credentials and timestamps other than
// updated_at are never touched here.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, u, u.ID); err != nil {
			return err
		}
		err := tx.Model(u).
			Select("Email", "Username", "FirstName", "LastName", "Bio", "Avatar").
			Updates(u).Error
		return duplicateUser(err)
	})
}

func (s *Store) SetPassword(ctx context.Context, userID uint, hash string) error {
	return s.conn(ctx).Model(&models.User{ID: userID}).Update("password_hash", hash).Error
}

func (s *Store) TouchLastLogin(ctx context.Context, userID uint, at time.Time) error {
	return s.conn(ctx).Model(&models.User{ID: userID}).UpdateColumn("last_login", at).Error
}

// DeleteUser removes an account. Tasks, attachments and comments they
// created survive with the attribution nulled; projects they own go with
// the usual project cascade. The blob keys of attachments removed by
// that cascade are returned so the caller can delete the bytes.
func (s *Store) DeleteUser(ctx context.Context, userID uint) ([]string, error) {
	var blobs []string
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Clauses(forUpdate()).First(&u, userID).Error; err != nil {
			return lookup(err, "user")
		}

		var owned []uint
		if err := tx.Model(&models.Project{}).Where("owner_id = ?", userID).Pluck("id", &owned).Error; err != nil {
			return err
		}
		for _, pid := range owned {
			keys, err := deleteProject(tx, pid)
			if err != nil {
				return err
			}
			blobs = append(blobs, keys...)
		}

		nulls := []struct {
			model  any
			column string
		}{
			{&models.Task{}, "created_by_id"},
			{&models.TaskAttachment{}, "uploaded_by_id"},
			{&models.Comment{}, "author_id"},
		}
		for _, n := range nulls {
			if err := tx.Model(n.model).Where(n.column+" = ?", userID).UpdateColumn(n.column, nil).Error; err != nil {
				return fmt.Errorf("null %s: %w", n.column, err)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.TaskAssignee{}).Error; err != nil {
			return err
		}
		return tx.Delete(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return blobs, nil
}

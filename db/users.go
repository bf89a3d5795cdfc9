package db

import (
	"context"
	"errors"

	"github.com/puoklam/social-graph-backend/db/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("email / username exists")
)

func (s *Store) isUserExist(ctx context.Context, excludeID uint, email, username string) (bool, error) {
	var exists bool
	q := "SELECT EXISTS(SELECT 1 FROM users WHERE (email = ? OR username = ?) AND id <> ?)"
	if err := s.GetDB(ctx).Raw(q, email, username, excludeID).Scan(&exists).Error; err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	exists, err := s.isUserExist(ctx, 0, u.Email, u.Username)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateUser
	}
	return s.GetDB(ctx).Create(u).Error
}

func (s *Store) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := s.GetDB(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.GetDB(ctx).First(&u, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *model.User) error {
	exists, err := s.isUserExist(ctx, u.ID, u.Email, u.Username)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateUser
	}
	return s.GetDB(ctx).Omit(clause.Associations).Save(u).Error
}

// DeleteUser removes the user and every edge touching it. It returns the
// ids of the users that were following it.
func (s *Store) DeleteUser(ctx context.Context, id uint) ([]uint, error) {
	followers := make([]uint, 0)
	err := s.GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Follow{}).Where("followee_id = ?", id).Pluck("follower_id", &followers).Error; err != nil {
			return err
		}
		if err := tx.Where("follower_id = ? OR followee_id = ?", id, id).Delete(&model.Follow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Session{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return followers, nil
}

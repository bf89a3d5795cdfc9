package db

import (
	"context"
	"strings"

	"github.com/puoklam/social-graph-backend/db/model"
	"github.com/puoklam/social-graph-backend/relationship"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type followTx struct {
	tx *gorm.DB
}

// Following locks the follower row so concurrent edits of the same
// following set are serialized until commit.
func (t *followTx) Following(userID uint) (model.IDSet, error) {
	var u model.User
	if err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&u, userID).Error; err != nil {
		return nil, err
	}
	return followingOf(t.tx, userID)
}

func (t *followTx) AddFollow(followerID, followeeID uint) error {
	return t.tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Follow{FollowerID: followerID, FolloweeID: followeeID}).
		Error
}

func (t *followTx) RemoveFollow(followerID, followeeID uint) error {
	return t.tx.
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&model.Follow{}).
		Error
}

func followingOf(db *gorm.DB, userID uint) (model.IDSet, error) {
	var ids []uint
	if err := db.Model(&model.Follow{}).Where("follower_id = ?", userID).Pluck("followee_id", &ids).Error; err != nil {
		return nil, err
	}
	return model.NewIDSet(ids...), nil
}

func (s *Store) Transaction(ctx context.Context, fn func(tx relationship.Tx) error) error {
	return s.GetDB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&followTx{tx: tx})
	})
}

func (s *Store) Following(ctx context.Context, userID uint) (model.IDSet, error) {
	return followingOf(s.GetDB(ctx), userID)
}

func (s *Store) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := s.GetDB(ctx).Model(&model.Follow{}).Where("followee_id = ?", userID).Order("follower_id").Pluck("follower_id", &ids).Error
	return ids, err
}

func (s *Store) FollowerCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := s.GetDB(ctx).Model(&model.Follow{}).Where("followee_id = ?", userID).Count(&n).Error
	return n, err
}

func (s *Store) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	users := make([]model.User, 0)
	db := s.GetDB(ctx).Order("id ASC")
	if query != "" {
		db = db.Where("username ILIKE ?", "%"+likeEscaper.Replace(query)+"%")
	}
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

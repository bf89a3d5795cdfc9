package db

import (
	"context"
	"errors"

	"github.com/puoklam/social-graph-backend/db/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("session does not exist")

func (s *Store) UpsertSession(ctx context.Context, userID uint, ip, pushToken string) (*model.Session, error) {
	session := &model.Session{
		UserID:        userID,
		IP:            ip,
		ExpoPushToken: pushToken,
	}
	err := s.GetDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "ip"}},
		DoUpdates: clause.AssignmentColumns([]string{"expo_push_token", "updated_at"}),
	}).Create(session).Error
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, userID uint, ip string) (*model.Session, error) {
	var session model.Session
	if err := s.GetDB(ctx).Where(&model.Session{UserID: userID, IP: ip}).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) DeleteSession(ctx context.Context, userID uint, ip string) error {
	return s.GetDB(ctx).Where("user_id = ? AND ip = ?", userID, ip).Delete(&model.Session{}).Error
}

// PushTokens returns the Expo push tokens of every session of userID.
func (s *Store) PushTokens(ctx context.Context, userID uint) ([]string, error) {
	tokens := make([]string, 0)
	err := s.GetDB(ctx).Model(&model.Session{}).
		Where("user_id = ? AND expo_push_token <> ''", userID).
		Pluck("expo_push_token", &tokens).
		Error
	return tokens, err
}

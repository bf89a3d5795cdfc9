package model

import (
	"time"
)

type Session struct {
	UserID        uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	IP            string    `json:"ip" gorm:"primaryKey"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ExpoPushToken string    `json:"-"`
}

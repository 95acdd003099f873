// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"
)

type Session struct {
	ID         uint    `gorm:"primaryKey"`
	Token      string  `gorm:"size:255;not null;uniqueIndex"`
	IPAddress  *string `gorm:"size:64;default:null"`
	UserAgent  *string `gorm:"size:512;default:null"`
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UserID     uint `gorm:"not null;index"`
	User       User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

func init() {
	AllModels = append(AllModels, &Session{})
}

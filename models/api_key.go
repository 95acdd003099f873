// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"strings"
	"time"
)

type APIKey struct {
	ID         uint   `gorm:"primaryKey"`
	KeyHash    string `gorm:"size:255;not null"`
	KeyPrefix  string `gorm:"size:12;not null;index"`
	Name       string `gorm:"size:100;not null"`
	IsActive   bool   `gorm:"not null"`
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	UserID     uint `gorm:"not null;index"`
	User       User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

func (k *APIKey) MaskedKey() string {
	return k.KeyPrefix + strings.Repeat("*", 32)
}

func init() {
	AllModels = append(AllModels, &APIKey{})
}

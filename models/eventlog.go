// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventStatus string
type EventCategory string

const (
	Success EventStatus = "SUCCESS"
	Failed  EventStatus = "FAILED"
)

const (
	Auth    EventCategory = "AUTH"
	APIKeys EventCategory = "APIKEY"
	Admin   EventCategory = "ADMIN"
	Billing EventCategory = "BILLING"
)

type EventLog struct {
	ID          uint          `gorm:"primaryKey"`
	EID         uuid.UUID     `gorm:"type:varchar(36);not null;uniqueIndex"`
	Category    EventCategory `gorm:"size:20;not null;index"`
	Status      EventStatus   `gorm:"size:20;not null"`
	Description *string       `gorm:"type:text;default:null"`
	CreatedAt   time.Time
	UserID      uint `gorm:"not null;index"`
	User        User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (eventLog *EventLog) BeforeCreate(tx *gorm.DB) (err error) {
	if eventLog.EID == uuid.Nil {
		eventLog.EID = uuid.New()
	}
	return
}

func init() {
	AllModels = append(AllModels, &EventLog{})
}

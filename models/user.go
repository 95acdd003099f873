// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"fmt"
	"time"
)

var AllModels []any

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

type Language string

const (
	LanguageEN Language = "en"
	LanguageDE Language = "de"
)

func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageEN:
		return LanguageEN, nil
	case LanguageDE:
		return LanguageDE, nil
	default:
		return "", fmt.Errorf("unsupported language: %q", s)
	}
}

// DefaultPlanName is reported for users without a plan reference.
const DefaultPlanName = "Free"

type User struct {
	ID               uint     `gorm:"primaryKey"`
	Email            string   `gorm:"size:255;not null;uniqueIndex"`
	Password         string   `gorm:"size:255;not null"`
	Role             Role     `gorm:"size:20;not null;default:'user';index"`
	Language         Language `gorm:"size:5;not null;default:'en'"`
	IsActive         bool     `gorm:"not null"`
	ConfirmedAt      *time.Time
	PlanID           *uint `gorm:"index"`
	Plan             *Plan `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`
	PlanSubscribedAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	BillingProfile   *BillingProfile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (u *User) IsConfirmed() bool {
	return u.ConfirmedAt != nil
}

func (u *User) Confirm(now time.Time) {
	u.ConfirmedAt = &now
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PlanName requires Plan to be preloaded when PlanID is set.
func (u *User) PlanName() string {
	if u.Plan != nil {
		return u.Plan.Name
	}
	return DefaultPlanName
}

func init() {
	AllModels = append(AllModels, &User{})
}

// SPDX-License-Identifier: GPL-3.0-only

package models

import "time"

type BillingProfile struct {
	ID         uint    `gorm:"primaryKey"`
	UserID     uint    `gorm:"not null;uniqueIndex"`
	FullName   *string `gorm:"size:255;default:null"`
	Company    *string `gorm:"size:255;default:null"`
	Address1   *string `gorm:"size:255;default:null"`
	Address2   *string `gorm:"size:255;default:null"`
	City       *string `gorm:"size:128;default:null"`
	State      *string `gorm:"size:128;default:null"`
	PostalCode *string `gorm:"size:64;default:null"`
	Country    *string `gorm:"size:2;default:null"`
	TaxID      *string `gorm:"size:64;default:null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func init() {
	AllModels = append(AllModels, &BillingProfile{})
}

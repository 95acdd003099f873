// SPDX-License-Identifier: GPL-3.0-only

package migrations

import (
	"errors"
	"fmt"

	"accountd/commons"
	"accountd/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

// DefaultPlans is the catalogue seeded on first migration.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			Name:          "Free",
			Description:   strPtr("Perfect for getting started"),
			Features:      []string{"Basic account features", "Email support", "Up to 2 API keys"},
			PriceCents:    0,
			Currency:      "USD",
			BillingPeriod: models.Monthly,
			IsActive:      true,
			SortOrder:     1,
		},
		{
			Name:          "Pro",
			Description:   strPtr("For growing teams and businesses"),
			Features:      []string{"All Free features", "Priority support", "Up to 10 API keys", "Usage analytics"},
			PriceCents:    1999,
			Currency:      "USD",
			BillingPeriod: models.Monthly,
			IsActive:      true,
			IsFeatured:    true,
			SortOrder:     2,
		},
		{
			Name:          "Enterprise",
			Description:   strPtr("For large organizations"),
			Features:      []string{"All Pro features", "Dedicated support", "Up to 50 API keys", "Custom integrations", "SLA guarantee"},
			PriceCents:    9999,
			Currency:      "USD",
			BillingPeriod: models.Monthly,
			IsActive:      true,
			SortOrder:     3,
		},
	}
}

func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_seed_default_plans",
			Migrate: func(tx *gorm.DB) error {
				for _, plan := range DefaultPlans() {
					var existing models.Plan
					err := tx.Where("name = ?", plan.Name).First(&existing).Error
					if err == nil {
						continue
					}
					if !errors.Is(err, gorm.ErrRecordNotFound) {
						return fmt.Errorf("failed to look up plan %s: %w", plan.Name, err)
					}
					if err := tx.Create(&plan).Error; err != nil {
						return fmt.Errorf("failed to create plan %s: %w", plan.Name, err)
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
		{
			ID: "002_promote_bootstrap_admin",
			Migrate: func(tx *gorm.DB) error {
				email := commons.NormalizeEmail(commons.GetConfig().BootstrapAdminEmail)
				if email == "" {
					return nil
				}
				if err := tx.Model(&models.User{}).
					Where("email = ?", email).
					Update("role", models.RoleAdmin).Error; err != nil {
					return fmt.Errorf("failed to promote bootstrap admin: %w", err)
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
	}
}

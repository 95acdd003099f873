// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type BillingPeriod string

const (
	Monthly  BillingPeriod = "monthly"
	Yearly   BillingPeriod = "yearly"
	Lifetime BillingPeriod = "lifetime"
)

func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch BillingPeriod(s) {
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	case Lifetime:
		return Lifetime, nil
	default:
		return "", fmt.Errorf("unknown billing period: %q", s)
	}
}

const MaxPlanFeatures = 5

type Plan struct {
	ID              uint          `gorm:"primaryKey"`
	Name            string        `gorm:"size:100;not null;uniqueIndex"`
	Description     *string       `gorm:"type:text;default:null"`
	Features        []string      `gorm:"type:text;serializer:json"`
	PriceCents      uint64        `gorm:"not null;default:0"`
	Currency        string        `gorm:"size:3;not null;default:'USD'"`
	BillingPeriod   BillingPeriod `gorm:"size:20;not null;default:'monthly'"`
	StripePriceID   *string       `gorm:"size:255;default:null"`
	StripeProductID *string       `gorm:"size:255;default:null"`
	IsActive        bool          `gorm:"not null"`
	IsFeatured      bool          `gorm:"not null"`
	SortOrder       int           `gorm:"not null;default:0"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (p *Plan) FormattedPrice() string {
	if p.PriceCents == 0 {
		return "Free"
	}
	return fmt.Sprintf("%s %s/%s", p.Currency, FormatPrice(p.PriceCents), p.BillingPeriod)
}

// ParsePrice converts a non-negative decimal with at most two fraction digits into cents.
func ParsePrice(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("price is required")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("invalid price: %q", s)
	}
	units, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price: %q", s)
	}
	var cents uint64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price: %q", s)
		}
	}
	return units*100 + cents, nil
}

func FormatPrice(cents uint64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func init() {
	AllModels = append(AllModels, &Plan{})
}

// SPDX-License-Identifier: GPL-3.0-only

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("Admin")
	assert.Error(t, err)
	_, err = ParseRole("staff")
	assert.Error(t, err)
}

func TestParseBillingPeriod(t *testing.T) {
	for _, s := range []string{"monthly", "yearly", "lifetime"} {
		p, err := ParseBillingPeriod(s)
		require.NoError(t, err)
		assert.Equal(t, BillingPeriod(s), p)
	}
	_, err := ParseBillingPeriod("weekly")
	assert.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	cases := map[string]uint64{
		"0":     0,
		"19.99": 1999,
		"5.5":   550,
		"100":   10000,
		".75":   75,
	}
	for in, want := range cases {
		got, err := ParsePrice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "-1", "1.234", "abc", "1."} {
		_, err := ParsePrice(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormattedPrice(t *testing.T) {
	free := Plan{Currency: "USD", BillingPeriod: Monthly}
	assert.Equal(t, "Free", free.FormattedPrice())

	pro := Plan{PriceCents: 1999, Currency: "USD", BillingPeriod: Monthly}
	assert.Equal(t, "USD 19.99/monthly", pro.FormattedPrice())
}

func TestUserPlanNameAndConfirm(t *testing.T) {
	u := User{}
	assert.Equal(t, DefaultPlanName, u.PlanName())
	assert.False(t, u.IsConfirmed())

	u.Plan = &Plan{Name: "Pro"}
	u.Confirm(time.Now())
	assert.Equal(t, "Pro", u.PlanName())
	assert.True(t, u.IsConfirmed())
}

func TestAPIKeyMaskAndExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	key := APIKey{KeyPrefix: "sk_live_abcd", ExpiresAt: &past}

	assert.Equal(t, "sk_live_abcd"+strings.Repeat("*", 32), key.MaskedKey())
	assert.True(t, key.IsExpired(now))

	key.ExpiresAt = nil
	assert.False(t, key.IsExpired(now))
}

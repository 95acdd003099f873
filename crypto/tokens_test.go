// SPDX-License-Identifier: GPL-3.0-only

package crypto

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenRoundTrip(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret", "salt").WithClock(fixedClock(issuedAt))

	token, err := codec.Issue(map[string]any{"uid": 42}, PurposeConfirm)
	require.NoError(t, err)

	verifier := codec.WithClock(fixedClock(issuedAt.Add(ConfirmTokenMaxAge)))
	payload, purpose, err := verifier.Verify(token, ConfirmTokenMaxAge)
	require.NoError(t, err)
	assert.Equal(t, PurposeConfirm, purpose)

	uid, err := UserIDFromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
	assert.NotContains(t, payload, "purpose")
	assert.NotContains(t, payload, "iat")
}

func TestTokenExpired(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	codec := NewTokenCodec("secret", "salt").WithClock(fixedClock(issuedAt))

	token, err := codec.Issue(map[string]any{"uid": 1}, PurposeConfirm)
	require.NoError(t, err)

	late := codec.WithClock(fixedClock(issuedAt.Add(ConfirmTokenMaxAge + time.Second)))
	payload, _, err := late.Verify(token, ConfirmTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, payload)
}

func TestTokenTampered(t *testing.T) {
	codec := NewTokenCodec("secret", "salt")
	token, err := codec.Issue(map[string]any{"uid": 1}, PurposeReset)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, _, err = codec.Verify(tampered, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = codec.Verify("not-a-token", ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewTokenCodec("secret", "other-salt")
	_, _, err = other.Verify(token, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	codec := NewTokenCodec("secret", "salt")
	claims := jwt.MapClaims{"uid": 1, "purpose": PurposeReset, "iat": time.Now().Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(codec.key)
	require.NoError(t, err)

	_, _, err = codec.Verify(token, ResetTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestResetTokenRejectedAsConfirm(t *testing.T) {
	codec := NewTokenCodec("secret", "salt")
	token, err := codec.Issue(map[string]any{"uid": 7}, PurposeReset)
	require.NoError(t, err)

	_, err = codec.VerifyPurpose(token, PurposeConfirm, ConfirmTokenMaxAge)
	assert.ErrorIs(t, err, ErrTokenPurpose)

	payload, err := codec.VerifyPurpose(token, PurposeReset, ResetTokenMaxAge)
	require.NoError(t, err)
	assert.EqualValues(t, 7, payload["uid"])
}

// SPDX-License-Identifier: GPL-3.0-only

package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"accountd/commons"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	ConfirmTokenMaxAge = 24 * time.Hour
	ResetTokenMaxAge   = 2 * time.Hour
)

const (
	claimPurpose  = "purpose"
	claimIssuedAt = "iat"
)

// TokenCodec issues and verifies signed, time-limited tokens carrying a small
// payload and a purpose tag.
type TokenCodec struct {
	key []byte
	now func() time.Time
}

// NewTokenCodec derives the signing key from the application secret and the
// token salt, so rotating either invalidates every outstanding link.
func NewTokenCodec(secret, salt string) *TokenCodec {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte("accountd tokens")), key); err != nil {
		panic(fmt.Sprintf("derive token key: %v", err))
	}
	return &TokenCodec{key: key, now: time.Now}
}

func NewTokenCodecFromConfig() *TokenCodec {
	cfg := commons.GetConfig()
	return NewTokenCodec(cfg.SecretKey, cfg.TokenSalt)
}

// WithClock returns a copy of the codec reading the time from now.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{key: tc.key, now: now}
}

func (tc *TokenCodec) Issue(payload map[string]any, purpose string) (string, error) {
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims[claimPurpose] = purpose
	claims[claimIssuedAt] = tc.now().Unix()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature, then the age against maxAge.
func (tc *TokenCodec) Verify(token string, maxAge time.Duration) (map[string]any, string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return tc.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tc.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, "", ErrTokenInvalid
	}

	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return nil, "", ErrTokenInvalid
	}
	purpose, ok := claims[claimPurpose].(string)
	if !ok {
		return nil, "", ErrTokenInvalid
	}
	age := tc.now().Unix() - issuedAt.Unix()
	if age > int64(maxAge/time.Second) {
		return nil, "", ErrTokenExpired
	}

	payload := make(map[string]any, len(claims))
	for k, v := range claims {
		if k == claimPurpose || k == claimIssuedAt {
			continue
		}
		payload[k] = v
	}
	return payload, purpose, nil
}

func (tc *TokenCodec) VerifyPurpose(token, purpose string, maxAge time.Duration) (map[string]any, error) {
	payload, got, err := tc.Verify(token, maxAge)
	if err != nil {
		return nil, err
	}
	if got != purpose {
		return nil, ErrTokenPurpose
	}
	return payload, nil
}

// UserIDFromPayload reads the "uid" entry of a verified payload.
func UserIDFromPayload(payload map[string]any) (uint, error) {
	switch v := payload["uid"].(type) {
	case float64:
		if v <= 0 || v != float64(uint(v)) {
			return 0, errors.New("invalid uid")
		}
		return uint(v), nil
	default:
		return 0, errors.New("missing uid")
	}
}

// SPDX-License-Identifier: GPL-3.0-only

// Package apikeys issues, authenticates and manages long-lived bearer keys.
// Only an argon2id digest of each key is stored; the plaintext is returned
// once, at issue or regenerate time.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/metrics"
	"accountd/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	KeyPrefix    = "sk_live_"
	prefixLength = 12
	keyBytes     = 32
)

var (
	ErrInvalidFormat   = errors.New("invalid API key format")
	ErrInvalidKey      = errors.New("invalid API key")
	ErrKeyDisabled     = errors.New("API key is disabled")
	ErrKeyExpired      = errors.New("API key has expired")
	ErrAccountDisabled = errors.New("account is disabled")
	ErrQuotaExceeded   = errors.New("API key quota exceeded")
	ErrKeyNotFound     = errors.New("API key not found")
)

type Manager struct {
	db     *gorm.DB
	crypto *crypto.Crypto
	cfg    *commons.Config
	now    func() time.Time
	locks  *userLocks
}

// userLocks serializes quota-checked writes per user.
type userLocks struct {
	mu    sync.Mutex
	byUID map[uint]*sync.Mutex
}

func NewManager(conn *gorm.DB, c *crypto.Crypto, cfg *commons.Config) *Manager {
	return &Manager{
		db:     conn,
		crypto: c,
		cfg:    cfg,
		now:    time.Now,
		locks:  &userLocks{byUID: make(map[uint]*sync.Mutex)},
	}
}

// WithClock returns a copy of the manager reading the time from now. The copy
// shares the per-user locks of m.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	return &Manager{db: m.db, crypto: m.crypto, cfg: m.cfg, now: now, locks: m.locks}
}

// Generate returns a fresh plaintext key.
func Generate() (string, error) {
	return crypto.GenerateRandomString(KeyPrefix, keyBytes, "base64url")
}

func prefixOf(key string) string {
	if len(key) < prefixLength {
		return key
	}
	return key[:prefixLength]
}

func (m *Manager) userLock(userID uint) *sync.Mutex {
	m.locks.mu.Lock()
	defer m.locks.mu.Unlock()
	l, ok := m.locks.byUID[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks.byUID[userID] = l
	}
	return l
}

// ForgetUser drops the issuance lock of a deleted user.
func (m *Manager) ForgetUser(userID uint) {
	m.locks.mu.Lock()
	delete(m.locks.byUID, userID)
	m.locks.mu.Unlock()
}

// lockOwner loads the user row inside tx, holding a row lock on dialects that
// support one.
func lockOwner(tx *gorm.DB, userID uint) (*models.User, error) {
	q := tx.Preload("Plan")
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	if err := q.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("load key owner: %w", err)
	}
	return &user, nil
}

func (m *Manager) checkQuota(tx *gorm.DB, user *models.User) error {
	var active int64
	if err := tx.Model(&models.APIKey{}).
		Where("user_id = ? AND is_active = ?", user.ID, true).
		Count(&active).Error; err != nil {
		return err
	}
	if active >= int64(m.cfg.QuotaFor(user.PlanName())) {
		return ErrQuotaExceeded
	}
	return nil
}

// Issue creates a key for userID. An empty name defaults to "API Key N".
func (m *Manager) Issue(ctx context.Context, userID uint, name string, expiresAt *time.Time) (*models.APIKey, string, error) {
	plaintext, err := Generate()
	if err != nil {
		return nil, "", err
	}
	digest, err := m.crypto.HashPassword(plaintext)
	if err != nil {
		return nil, "", err
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	key := &models.APIKey{
		KeyHash:   digest,
		KeyPrefix: prefixOf(plaintext),
		Name:      strings.TrimSpace(name),
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
		UserID:    userID,
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockOwner(tx, userID)
		if err != nil {
			return err
		}
		if err := m.checkQuota(tx, user); err != nil {
			return err
		}
		if key.Name == "" {
			var total int64
			if err := tx.Model(&models.APIKey{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
				return err
			}
			key.Name = fmt.Sprintf("API Key %d", total+1)
		}
		return tx.Omit("User").Create(key).Error
	})
	if err != nil {
		return nil, "", err
	}
	metrics.APIKeyEvent("issued")
	return key, plaintext, nil
}

// Authenticate resolves a presented key to its owner. Checks run in order:
// format, hash match, active flag, expiry, owner status.
func (m *Manager) Authenticate(ctx context.Context, presented string) (*models.User, *models.APIKey, error) {
	if !strings.HasPrefix(presented, KeyPrefix) || len(presented) <= len(KeyPrefix) {
		return nil, nil, ErrInvalidFormat
	}

	var candidates []models.APIKey
	if err := m.db.WithContext(ctx).
		Preload("User").
		Preload("User.Plan").
		Where("key_prefix = ?", prefixOf(presented)).
		Find(&candidates).Error; err != nil {
		return nil, nil, err
	}

	var key *models.APIKey
	for i := range candidates {
		if m.crypto.CheckPassword(candidates[i].KeyHash, presented) {
			key = &candidates[i]
			break
		}
	}
	if key == nil {
		return nil, nil, ErrInvalidKey
	}

	now := m.now()
	switch {
	case !key.IsActive:
		return nil, nil, ErrKeyDisabled
	case key.IsExpired(now):
		return nil, nil, ErrKeyExpired
	case !key.User.IsActive:
		return nil, nil, ErrAccountDisabled
	}

	if err := m.db.WithContext(ctx).Model(key).UpdateColumn("last_used_at", now).Error; err != nil {
		return nil, nil, err
	}
	key.LastUsedAt = &now
	user := key.User
	return &user, key, nil
}

func (m *Manager) List(ctx context.Context, userID uint) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&keys).Error
	return keys, err
}

// Get returns the key only when it belongs to userID.
func (m *Manager) Get(ctx context.Context, userID, keyID uint) (*models.APIKey, error) {
	var key models.APIKey
	err := m.db.WithContext(ctx).Where("id = ? AND user_id = ?", keyID, userID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (m *Manager) Revoke(ctx context.Context, key *models.APIKey) error {
	if err := m.db.WithContext(ctx).Model(key).UpdateColumn("is_active", false).Error; err != nil {
		return err
	}
	key.IsActive = false
	metrics.APIKeyEvent("revoked")
	return nil
}

// Toggle flips the active flag. Re-enabling counts against the owner's quota.
func (m *Manager) Toggle(ctx context.Context, key *models.APIKey) error {
	if key.IsActive {
		return m.Revoke(ctx, key)
	}

	l := m.userLock(key.UserID)
	l.Lock()
	defer l.Unlock()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockOwner(tx, key.UserID)
		if err != nil {
			return err
		}
		if err := m.checkQuota(tx, user); err != nil {
			return err
		}
		return tx.Model(key).UpdateColumn("is_active", true).Error
	})
	if err != nil {
		return err
	}
	key.IsActive = true
	metrics.APIKeyEvent("enabled")
	return nil
}

// Regenerate replaces the secret of key in place and returns the new plaintext.
// Id and name survive; last use is cleared.
func (m *Manager) Regenerate(ctx context.Context, key *models.APIKey) (string, error) {
	plaintext, err := Generate()
	if err != nil {
		return "", err
	}
	digest, err := m.crypto.HashPassword(plaintext)
	if err != nil {
		return "", err
	}
	now := m.now()
	if err := m.db.WithContext(ctx).Model(key).UpdateColumns(map[string]any{
		"key_hash":     digest,
		"key_prefix":   prefixOf(plaintext),
		"created_at":   now,
		"last_used_at": nil,
	}).Error; err != nil {
		return "", err
	}
	key.KeyHash = digest
	key.KeyPrefix = prefixOf(plaintext)
	key.CreatedAt = now
	key.LastUsedAt = nil
	metrics.APIKeyEvent("regenerated")
	return plaintext, nil
}

func (m *Manager) Delete(ctx context.Context, key *models.APIKey) error {
	if err := m.db.WithContext(ctx).Delete(&models.APIKey{}, key.ID).Error; err != nil {
		return err
	}
	metrics.APIKeyEvent("deleted")
	return nil
}

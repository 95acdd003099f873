// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"accountd/commons"
	"accountd/crypto"
	"accountd/db"
	"accountd/models"
	"accountd/passwordcheck"

	"gorm.io/gorm"
)

// ensureAdmin creates a confirmed, active admin, or promotes an existing
// account and resets its password. It reports whether a new row was created.
func ensureAdmin(conn *gorm.DB, c *crypto.Crypto, email, password string) (*models.User, bool, error) {
	email = commons.NormalizeEmail(email)
	if email == "" {
		return nil, false, errors.New("email is required")
	}
	if err := passwordcheck.ValidatePassword(context.Background(), password); err != nil {
		return nil, false, err
	}

	digest, err := c.HashPassword(password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	created := false
	err = conn.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				Email:    email,
				Password: digest,
				Role:     models.RoleAdmin,
				Language: models.LanguageEN,
				IsActive: true,
			}
			user.Confirm(time.Now())
			created = true
			return tx.Create(&user).Error
		case err != nil:
			return err
		}

		user.Password = digest
		user.Role = models.RoleAdmin
		user.IsActive = true
		if !user.IsConfirmed() {
			user.Confirm(time.Now())
		}
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, false, err
	}
	return &user, created, nil
}

func main() {
	email := flag.String("email", "", "Admin email address (required)")
	password := flag.String("password", "", "Admin password (required)")
	flag.Parse()

	commons.InitLogger()
	if *email == "" || *password == "" {
		commons.Logger.Fatal("Flags -email and -password are required.")
	}

	db.InitDB()
	db.MigrateDB()

	user, created, err := ensureAdmin(db.Conn, crypto.NewCrypto(), *email, *password)
	if err != nil {
		commons.Logger.Fatalf("Failed to create admin: %v", err)
	}
	if created {
		commons.Logger.Infof("Created admin %s (id %d)", user.Email, user.ID)
	} else {
		commons.Logger.Infof("Promoted %s (id %d) to admin", user.Email, user.ID)
	}
}

// SPDX-License-Identifier: GPL-3.0-only

package db

import (
	"fmt"
	"os"
	"strings"

	"accountd/commons"
	"accountd/migrations"
	"accountd/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Conn *gorm.DB

// Open connects to the database for the given dialect. Unknown dialects fall
// back to sqlite with dsn as the file path.
func Open(dialect, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(dialect) {
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required for postgres dialect")
		}
		dialector = postgres.Open(dsn)
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("MYSQL_DSN is required for mysql dialect")
		}
		dialector = mysql.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if conn.Dialector.Name() == "sqlite" {
		if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	}
	return conn, nil
}

func InitDB() {
	cfg := commons.GetConfig()
	dialect := strings.ToLower(cfg.DBDialect)

	var dsn, dbInfo string
	switch dialect {
	case "postgres":
		dsn = cfg.PostgresDSN
		dbInfo = "PostgreSQL database (DSN hidden)"
	case "mysql":
		dsn = cfg.MySQLDSN
		dbInfo = "MySQL database (DSN hidden)"
	default:
		dialect = "sqlite"
		dsn = cfg.DBPath
		dbInfo = cfg.DBPath
	}

	commons.Logger.Debugf("Connecting to %s database", dialect)
	conn, err := Open(dialect, dsn)
	if err != nil {
		commons.Logger.Error("Database connection failed:", err)
		os.Exit(1)
	}
	Conn = conn
	commons.Logger.Infof("Database connection established. dialect: %s, database: %s", dialect, dbInfo)
}

// Migrate creates the schema and applies pending data migrations.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.AllModels...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	m := gormigrate.New(conn, gormigrate.DefaultOptions, migrations.List())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("data migrations: %w", err)
	}
	return nil
}

func MigrateDB() {
	commons.Logger.Info("Running database migrations")
	if err := Migrate(Conn); err != nil {
		commons.Logger.Error("Database migration failed:", err)
		os.Exit(1)
	}
	commons.Logger.Info("Database migration completed")
}

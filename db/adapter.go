package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kasuganosora/vkrpg/config"
	dbmysql "github.com/kasuganosora/vkrpg/db/mysql"
	dbpostgres "github.com/kasuganosora/vkrpg/db/postgres"
	dbsqlite "github.com/kasuganosora/vkrpg/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
	ModePostgres = "postgres"
)

// Open returns a *gorm.DB for the configured database mode. Networked
// databases are pinged with exponential backoff for up to cfg.ConnectWait so
// the server can start alongside its database container.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return openWithRetry(ctx, cfg, func() (*gorm.DB, error) {
			return dbmysql.Open(cfg.DSN, cfg.MaxOpen, cfg.MaxIdle, cfg.MaxLife)
		})
	case ModePostgres:
		return openWithRetry(ctx, cfg, func() (*gorm.DB, error) {
			return dbpostgres.Open(cfg.DSN, cfg.MaxOpen, cfg.MaxIdle, cfg.MaxLife)
		})
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}

func openWithRetry(ctx context.Context, cfg config.DatabaseConfig, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: database.dsn is required for mode %q", cfg.Mode)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = cfg.ConnectWait

	var gdb *gorm.DB
	operation := func() error {
		conn, err := open()
		if err != nil {
			return err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(pingCtx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		gdb = conn
		return nil
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Mode, err)
	}
	return gdb, nil
}

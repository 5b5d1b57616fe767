package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shelfmark/shelfmark/pkg/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type key int

const ctxKey key = 0

func WithLogging(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey, true)
}

type logQueryHook struct {
	log logger.Logger
}

func (*logQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (qh *logQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	enabled, ok := ctx.Value(ctxKey).(bool)
	if !ok || !enabled {
		return
	}

	qh.log.Debug(event.Query)
}

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// failure. Ingestion relies on this as the duplicate signal for the
// (user_id, fingerprint) index instead of a read-then-write check.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE") ||
		strings.Contains(msg, "(2067)") || // SQLITE_CONSTRAINT_UNIQUE
		strings.Contains(msg, "(1555)") // SQLITE_CONSTRAINT_PRIMARYKEY
}

func New(cfg *config.Config) (*bun.DB, error) {
	// Get the underlying SQLite driver and create a connector with retry logic.
	drv := sqliteshim.Driver()
	var connector driver.Connector
	var err error
	if drvCtx, ok := drv.(driver.DriverContext); ok {
		connector, err = drvCtx.OpenConnector(cfg.DatabaseFilePath)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	} else {
		// Neither bundled SQLite driver implements OpenConnector, so wrap the
		// plain driver to keep sql.OpenDB in the path.
		connector = newDriverConnector(drv, cfg.DatabaseFilePath)
	}

	// Per-connection setup. WAL mode allows concurrent reads during writes.
	// busy_timeout makes SQLite wait before returning SQLITE_BUSY, which
	// handles short-term lock contention automatically, and foreign_keys
	// enforces referential integrity for books.category_id and
	// categories.parent_id. busy_timeout and foreign_keys reset on every new
	// connection, so they have to run here rather than once on the pool.
	initSQL := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.DatabaseBusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}

	// Wrap the connector with retry logic for SQLITE_BUSY errors.
	retryConnector := newRetryConnector(connector, cfg.DatabaseMaxRetries, initSQL...)
	sqldb := sql.OpenDB(retryConnector)

	// SQLite permits a single writer at a time. Funneling the pool through
	// one connection makes concurrent transactions queue instead of failing
	// with SQLITE_BUSY mid-transaction, which busy_timeout can't resolve for
	// a deferred transaction upgrading to a write lock.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	// print out all queries in debug mode
	if cfg.DatabaseDebug {
		db.AddQueryHook(&logQueryHook{logger.NewWithLevel("debug")})
	}

	// Retry up to a few times to ensure that the database can connect.
	for i := 0; i < cfg.DatabaseConnectRetryCount; i++ {
		_, err = db.Exec("SELECT 1")
		if err != nil {
			time.Sleep(cfg.DatabaseConnectRetryDelay)
			continue
		}
		// We've successfully connected.
		break
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return db, nil
}

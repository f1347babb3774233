package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Funclose/Ef-HomeWork/internal/config"
	"github.com/Funclose/Ef-HomeWork/pkg/errorbank"
)

// Connections bundles writer and reader bun instances. A Connections value is
// owned by one caller at a time and must be released with Close.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB

	closeOnce sync.Once
	closeErr  error
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// New builds writer and reader pools and ties their release to the Fx lifecycle.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	conns, err := connect(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				return err
			}
			logger.Info("database connected", zap.String("driver", cfg.Database.Driver))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return conns.Close()
		},
	})

	return conns, nil
}

// Open returns a pinged handle bound to the configured connection.
func Open(ctx context.Context, cfg config.Database, logger *zap.Logger) (*Connections, error) {
	conns, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := conns.Ping(ctx); err != nil {
		_ = conns.Close()
		return nil, err
	}
	return conns, nil
}

// With opens a handle, runs fn and releases the handle on every exit path.
func With(ctx context.Context, cfg config.Database, logger *zap.Logger, fn func(*Connections) error) (err error) {
	conns, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conns.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(conns)
}

// Ping checks both pools.
func (c *Connections) Ping(ctx context.Context) error {
	if err := pingContext(ctx, c.Writer); err != nil {
		return errorbank.Persistence("ping writer", errorbank.WithCause(err))
	}
	if c.Reader != c.Writer {
		if err := pingContext(ctx, c.Reader); err != nil {
			return errorbank.Persistence("ping reader", errorbank.WithCause(err))
		}
	}
	return nil
}

// Close releases both pools. Calls after the first return the same result.
func (c *Connections) Close() error {
	c.closeOnce.Do(func() {
		if err := c.Writer.Close(); err != nil {
			c.closeErr = errorbank.Persistence("close writer", errorbank.WithCause(err))
		}
		if c.Reader != c.Writer {
			if err := c.Reader.Close(); err != nil && c.closeErr == nil {
				c.closeErr = errorbank.Persistence("close reader", errorbank.WithCause(err))
			}
		}
	})
	return c.closeErr
}

func connect(cfg config.Database, logger *zap.Logger) (*Connections, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dial, err := selectDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	writerSQL, err := openSQLDB(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errorbank.Configuration("open writer", errorbank.WithCause(err))
	}
	applyPoolSettings(writerSQL, cfg)

	writer := bun.NewDB(writerSQL, dial)
	writer.AddQueryHook(queryLogger{logger: logger})

	reader := writer
	if cfg.Driver != "sqlite" && cfg.ReaderDSN != "" && cfg.ReaderDSN != cfg.DSN {
		readerSQL, err := openSQLDB(cfg.Driver, cfg.ReaderDSN)
		if err != nil {
			_ = writer.Close()
			return nil, errorbank.Configuration("open reader", errorbank.WithCause(err))
		}
		applyPoolSettings(readerSQL, cfg)
		reader = bun.NewDB(readerSQL, dial)
		reader.AddQueryHook(queryLogger{logger: logger})
	}

	return &Connections{Writer: writer, Reader: reader}, nil
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, errorbank.Configuration(fmt.Sprintf("unsupported database driver: %s", driver))
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "sqlite":
		return sql.Open("sqlite3", sqliteDSN(dsn))
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// sqliteDSN turns on foreign key enforcement unless the DSN sets it.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.Driver == "sqlite" {
		// One long-lived connection: SQLite serialises writers and an
		// in-memory database lives only as long as its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}

// Package database centralises sqlx connection helpers for the direct
// MySQL transport.  The driver is go-sql-driver/mysql, which also works
// with MariaDB, the usual ExpressionEngine backend.
//
// Public entry points:
//
//	DSN(site)                         – build a DSN from a config.Site.
//	Open(ctx, dsn)                    – quick helper with a tiny pool.
//	OpenWithOptions(ctx, dsn, opts)   – fine-grained control.
//
// Both helpers Ping the database before returning so callers fail before
// any resource kind is touched.  Callers should Close() the returned
// *sqlx.DB when done.
package database

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/syncee/internal/config"
)

// Options tunes the pool.  A sync run issues four sequential queries, so
// the defaults are small.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions is what Open uses.
var DefaultOptions = Options{
	MaxOpenConns:    2,
	MaxIdleConns:    1,
	ConnMaxLifetime: 30 * time.Minute,
}

// DSN builds a go-sql-driver DSN for site.
func DSN(site config.Site) string {
	c := mysql.NewConfig()
	c.User = site.DBUser
	c.Passwd = site.DBPassword
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(site.DBHost, strconv.Itoa(site.DBPort))
	c.DBName = site.DBName
	return c.FormatDSN()
}

// Open returns a *sqlx.DB with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions)
}

// OpenWithOptions lets callers tune the pool.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// DB wraps sqlx.DB for Postgres (pgx) or SQLite.
type DB struct {
	Client *sqlx.DB
	Driver string
}

// NewDB opens a connection for driver ("postgres" or "sqlite3") with sane defaults.
func NewDB(driver, connString string) (*DB, error) {
	name := driverName(driver)
	db, err := sqlx.Open(name, connString)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	if name == "sqlite3" {
		// sqlite serialises writers; a single connection also keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}
	return &DB{Client: db, Driver: name}, errors.Wrap(db.PingContext(context.Background()), "ping db")
}

// Migrate creates the portal tables when they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	ddl := schema
	if d.Driver == "sqlite3" {
		ddl = strings.ReplaceAll(ddl, "TIMESTAMPTZ", "DATETIME")
	}
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate: %s", firstLine(stmt))
		}
	}
	return nil
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique or primary key constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// IsNoRows reports whether err is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "pgx"
	}
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i > 0 {
		return stmt[:i]
	}
	return stmt
}

// StringList is an ordered list of strings stored as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return errors.Errorf("store: cannot scan %T into StringList", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return errors.Wrap(err, "store: decode string list")
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/freewilll/potluck/ledger"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Amounts are stored as decimal text, so summing happens here rather than
// in SQL where sqlite would go through floating point.
var sqliteDialect = dialect{
	name: "sqlite",

	sumContributions: func(ctx context.Context, q querier, objectiveID int) (decimal.Decimal, error) {
		rows, err := q.QueryContext(ctx, "SELECT amount_contributed FROM contributions WHERE objective_id = $1", objectiveID)
		if err != nil {
			return decimal.Zero, err
		}
		defer rows.Close()

		var contributions []ledger.Contribution
		for rows.Next() {
			var c ledger.Contribution
			if err := rows.Scan(&c.AmountContributed); err != nil {
				return decimal.Zero, err
			}
			contributions = append(contributions, c)
		}
		if err := rows.Err(); err != nil {
			return decimal.Zero, err
		}
		return ledger.Total(contributions), nil
	},

	isUniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

// NewSQLiteDatabase opens (creating if needed) the sqlite database at path
// and brings its schema up to date. The pool holds a single connection, so
// every transaction runs on its own and no row locking is needed.
func NewSQLiteDatabase(ctx context.Context, path string) (*SQLDatabase, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	migrateSchema := func(ctx context.Context) error {
		slog.DebugContext(ctx, "Migrating database schema", "backend", "sqlite", "path", path)
		return runMigrations("sqlite", dsn, "migrations/sqlite", func(db *sql.DB) (migrationDriver, error) {
			return msqlite.WithInstance(db, &msqlite.Config{})
		})
	}

	if err := migrateSchema(ctx); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &SQLDatabase{db: db, dialect: sqliteDialect, migrate: migrateSchema}, nil
}

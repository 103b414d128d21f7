package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Config holds the configuration for the postgresql database
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN returns the lib/pq connection string for the config
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s "+
		"password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

var pgDialect = dialect{
	name:    "postgres",
	lockRow: "FOR UPDATE",

	sumContributions: func(ctx context.Context, q querier, objectiveID int) (decimal.Decimal, error) {
		var total decimal.Decimal
		err := q.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(amount_contributed), 0)
			FROM contributions
			WHERE objective_id = $1
		`, objectiveID).Scan(&total)
		return total, err
	},

	isUniqueViolation: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
	},
}

// NewPgDatabase connects to postgresql. The schema is created separately
// with CreateSchema.
func NewPgDatabase(ctx context.Context, config Config) (*SQLDatabase, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres database: %w", err)
	}

	return &SQLDatabase{
		db:      db,
		dialect: pgDialect,
		migrate: func(ctx context.Context) error {
			slog.InfoContext(ctx, "Creating database schema", "backend", "postgres", "host", config.Host, "name", config.Name)
			return runMigrations("postgres", config.DSN(), "migrations/postgres", func(db *sql.DB) (migrationDriver, error) {
				return postgres.WithInstance(db, &postgres.Config{})
			})
		},
	}, nil
}

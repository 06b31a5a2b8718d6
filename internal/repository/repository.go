package repository

import (
	"context"
	"fmt"

	"github.com/allthriveai/allthriveai-sub012/pkg/logger"

	"github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Repository struct {
	db          *sqlx.DB
	placeholder squirrel.PlaceholderFormat
}

type Config struct {
	// Driver is "postgres" or "sqlite". sqlite keeps local development
	// off a running database server.
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	// Path is the database file, sqlite only.
	Path string `json:"path"`
}

func New(cfg Config) (*Repository, error) {
	var (
		db  *sqlx.DB
		ph  squirrel.PlaceholderFormat
		err error
	)

	switch cfg.Driver {
	case "sqlite", "sqlite3":
		db, err = sqlx.Connect("sqlite3", cfg.Path)
		ph = squirrel.Question
	case "", "postgres", "pgx":
		db, err = sqlx.Connect("pgx", cfg.GetDatabaseURL())
		ph = squirrel.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return &Repository{
		db:          db,
		placeholder: ph,
	}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// builder returns a statement builder with the placeholder format of
// the active driver.
func (r *Repository) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(r.placeholder)
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return tx.Commit()
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

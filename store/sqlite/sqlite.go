package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/MrEthical07/bankauth"
	"github.com/MrEthical07/bankauth/ledger"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo holds every query. It runs either on the pool or inside a transaction.
type repo struct {
	q dbtx
}

// Store implements bankauth.Store and ledger.TxStore.
type Store struct {
	repo
	db *sql.DB
}

var (
	_ bankauth.Store  = (*Store)(nil)
	_ ledger.TxStore  = (*Store)(nil)
	_ bankauth.JoinTx = repo{}
)

// Open opens the database at dsn and applies pending migrations. A dsn of
// ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. The schema must be migrated.
func New(db *sql.DB) *Store {
	return &Store{repo: repo{q: db}, db: db}
}

// Migrate applies every pending embedded migration.
func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("sqlite migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlite migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InJoinTx implements bankauth.UserStore.
func (s *Store) InJoinTx(ctx context.Context, fn func(tx bankauth.JoinTx) error) error {
	return s.withTx(ctx, func(r repo) error { return fn(r) })
}

// InLedgerTx implements ledger.TxStore.
func (s *Store) InLedgerTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.withTx(ctx, func(r repo) error { return fn(r) })
}

func (s *Store) withTx(ctx context.Context, fn func(r repo) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(repo{q: tx})
}

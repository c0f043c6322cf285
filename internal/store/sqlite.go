package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lox/miniquoter/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a sqlite database and applies WAL settings for file-backed paths.
// In-memory databases are pinned to one connection so every query sees the
// same database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA busy_timeout=5000")
	}
	return db, nil
}

// ReplacePostalCodes swaps the whole postal code table in one transaction.
func (s *Store) ReplacePostalCodes(places []models.Place) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM postal_codes`); err != nil {
		return fmt.Errorf("clear postal codes: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO postal_codes (postal_code, city, state, state_name, county, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(postal_code) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range places {
		if _, err := stmt.Exec(p.PostalCode, p.City, p.State, p.StateName, p.County, p.Point.Latitude, p.Point.Longitude); err != nil {
			return fmt.Errorf("insert %s: %w", p.PostalCode, err)
		}
	}

	return tx.Commit()
}

func (s *Store) CountPostalCodes() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM postal_codes`).Scan(&n)
	return n, err
}

// LookupPostalCode returns nil, nil for unknown codes.
func (s *Store) LookupPostalCode(ctx context.Context, code string) (*models.Place, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT postal_code, city, state, state_name, county, latitude, longitude
		FROM postal_codes
		WHERE postal_code = ?
	`, code)

	var p models.Place
	err := row.Scan(&p.PostalCode, &p.City, &p.State, &p.StateName, &p.County, &p.Point.Latitude, &p.Point.Longitude)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

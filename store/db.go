// Package store persists enrolled users and their fingerprint templates in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	fingerprint "github.com/high-horse/fingerprint"
)

var ErrUserNotFound = errors.New("user not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	access_level     INTEGER NOT NULL,
	fingerprint_name TEXT NOT NULL UNIQUE,
	created_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS templates (
	fingerprint_name TEXT PRIMARY KEY,
	template         BLOB NOT NULL
);
`

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// a single connection serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &DB{db}, nil
}

// Enroll stores the user and template atomically. The template identity must
// be the user's fingerprint name.
func (db *DB) Enroll(ctx context.Context, user *fingerprint.User, t *fingerprint.Template) error {
	if t.Identity != user.FingerprintName {
		return fmt.Errorf("template %q does not belong to %q", t.Identity, user.FingerprintName)
	}
	blob, err := EncodeTemplate(t)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, access_level, fingerprint_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, int(user.AccessLevel), user.FingerprintName, user.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO templates (fingerprint_name, template) VALUES (?, ?)`,
		user.FingerprintName, blob); err != nil {
		return fmt.Errorf("failed to insert template: %w", err)
	}
	return tx.Commit()
}

// Gallery loads every template in enrollment order.
func (db *DB) Gallery(ctx context.Context) (*fingerprint.Gallery, error) {
	rows, err := db.QueryContext(ctx, `SELECT template FROM templates ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	gallery := fingerprint.NewGallery()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		t, err := DecodeTemplate(blob)
		if err != nil {
			return nil, err
		}
		gallery.Add(t)
	}
	return gallery, rows.Err()
}

func (db *DB) UserByFingerprint(ctx context.Context, fingerprintName string) (*fingerprint.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, access_level, fingerprint_name, created_at FROM users WHERE fingerprint_name = ?`,
		fingerprintName)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", fingerprintName, ErrUserNotFound)
	}
	return u, err
}

func (db *DB) Users(ctx context.Context) ([]*fingerprint.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, access_level, fingerprint_name, created_at FROM users ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*fingerprint.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user together with the enrolled template.
func (db *DB) DeleteUser(ctx context.Context, fingerprintName string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE fingerprint_name = ?`, fingerprintName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", fingerprintName, ErrUserNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE fingerprint_name = ?`, fingerprintName); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*fingerprint.User, error) {
	var (
		u       fingerprint.User
		level   int
		created int64
	)
	if err := s.Scan(&u.ID, &u.Name, &level, &u.FingerprintName, &created); err != nil {
		return nil, err
	}
	u.AccessLevel = fingerprint.AccessLevel(level)
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				email TEXT NOT NULL UNIQUE COLLATE NOCASE,
				password_hash TEXT NOT NULL,
				storage_used INTEGER NOT NULL DEFAULT 0
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				name TEXT NOT NULL,
				description TEXT,
				parent_id INTEGER REFERENCES categories (id),
				path TEXT NOT NULL DEFAULT '',
				level INTEGER NOT NULL DEFAULT 0,
				is_default BOOLEAN NOT NULL DEFAULT FALSE
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Sibling names are unique per user, roots included (NULL parents
		// collapse to 0 so they conflict with each other).
		_, err = db.Exec(`
			CREATE UNIQUE INDEX ux_categories_user_parent_name
			ON categories (user_id, COALESCE(parent_id, 0), name COLLATE NOCASE)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// At most one default bucket per user; it's looked up by this flag,
		// never by name.
		_, err = db.Exec(`
			CREATE UNIQUE INDEX ux_categories_user_default
			ON categories (user_id) WHERE is_default
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				user_id INTEGER REFERENCES users (id) ON DELETE CASCADE NOT NULL,
				category_id INTEGER REFERENCES categories (id),
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				cover_path TEXT NOT NULL DEFAULT '',
				isbn TEXT,
				description TEXT,
				file_uri TEXT NOT NULL,
				file_type TEXT NOT NULL DEFAULT 'pdf',
				file_size INTEGER,
				progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
				read BOOLEAN NOT NULL DEFAULT FALSE,
				fingerprint TEXT NOT NULL
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// The duplicate-detection contract: one fingerprint per user. A
		// concurrent double-ingest loses this race at the index, not at an
		// application-level check.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_user_fingerprint ON books (user_id, fingerprint)`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Reverse direction of the book→category association.
		_, err = db.Exec(`CREATE INDEX ix_books_user_category ON books (user_id, category_id)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_books_user_created ON books (user_id, created_at)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{"books", "categories", "users"} {
			_, err := db.Exec(`DROP TABLE IF EXISTS ` + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}

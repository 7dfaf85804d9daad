package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE cache_entries (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				query_key TEXT NOT NULL,
				payload TEXT NOT NULL,
				fetched_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_cache_entries_query_key ON cache_entries (query_key)`)
		if err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS cache_entries`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}

package store

import (
	"database/sql"
	"strconv"
)

// schemaVersion is the current on-disk schema generation. Migrations
// are forward-only and additive: a gap from the stored version to
// this one is closed by running every migration in order inside one
// transaction.
const schemaVersion = 2

type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create files table",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS files (
					id            INTEGER PRIMARY KEY AUTOINCREMENT,
					filename      TEXT NOT NULL,
					path          TEXT NOT NULL UNIQUE,
					size          INTEGER NOT NULL,
					modified_time INTEGER NOT NULL,
					file_type     TEXT NOT NULL,
					indexed_time  INTEGER NOT NULL
				)`)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_filename ON files(filename COLLATE NOCASE)`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_path ON files(path COLLATE NOCASE)`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_modified_time ON files(modified_time)`); err != nil {
				return err
			}
			return nil
		},
	},
	{
		version: 2,
		name:    "add usage_stats table",
		apply: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS usage_stats (
					id            INTEGER PRIMARY KEY AUTOINCREMENT,
					file_id       INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
					launch_count  INTEGER NOT NULL DEFAULT 0,
					last_launched INTEGER,
					UNIQUE(file_id)
				)`)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_file_id ON usage_stats(file_id)`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_launch_count ON usage_stats(launch_count DESC)`); err != nil {
				return err
			}
			return nil
		},
	},
}

// currentVersion reads the persisted schema_version, returning 0 for
// a store that has never been initialized (no metadata table yet).
func currentVersion(db *sql.DB) (int, error) {
	var tableName string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='metadata'`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var value string
	err = db.QueryRow(`SELECT value FROM metadata WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// migrate runs every migration whose version exceeds from, inside one
// transaction, then stamps the new version. A failed
// migration aborts with the old version still in place.
func migrate(db *sql.DB, from int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS metadata (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		if err := m.apply(tx); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(schemaVersion)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/stevemurr/stub-server/record"
)

// SqliteSource reads collections from a single SQLite database.
//
// Tables:
//
//	records(collection, position, data)  PRIMARY KEY (collection, position)
//
// data holds one JSON object per row; position keeps file order.
type SqliteSource struct {
	db *sql.DB
}

// NewSqliteSource opens (creating if needed) the database at dbPath. The
// caller must have imported the sqlite3 driver.
func NewSqliteSource(dbPath string) (*SqliteSource, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(dbPath))
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dbPath)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set journal mode")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		position INTEGER NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (collection, position)
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create records table")
	}
	return &SqliteSource{db: db}, nil
}

func (s *SqliteSource) Close() error {
	return s.db.Close()
}

func (s *SqliteSource) Load(name string) ([]record.Record, error) {
	rows, err := s.db.Query(
		"SELECT data FROM records WHERE collection = ? ORDER BY position",
		name,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "load %q", name)
	}
	defer rows.Close()
	var recs []record.Record
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := record.Unmarshal([]byte(raw))
		if err != nil {
			continue
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *SqliteSource) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT collection FROM records ORDER BY collection")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Import replaces the stored records of a collection in one transaction.
func (s *SqliteSource) Import(name string, recs []record.Record) error {
	if !ValidName(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM records WHERE collection = ?", name); err != nil {
		return errors.Wrapf(err, "clear %q", name)
	}
	stmt, err := tx.Prepare("INSERT INTO records (collection, position, data) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(name, i, string(b)); err != nil {
			return errors.Wrapf(err, "insert %q row %d", name, i)
		}
	}
	return tx.Commit()
}

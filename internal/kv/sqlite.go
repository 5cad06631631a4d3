package kv

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
)

const storageTable = "storage"

// SQLite stores keys in the storage table created by the migrations package.
type SQLite struct {
	db *sql.DB
}

// NewSQLite returns a Storage backed by db.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(key string) (string, error) {
	query, args, err := squirrel.
		Select("value").
		From(storageTable).
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return "", errors.Wrap(err, "build storage select")
	}

	var value string
	err = s.db.QueryRow(query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "read storage key %q", key)
	}
	return value, nil
}

func (s *SQLite) Set(key, value string) error {
	query, args, err := squirrel.
		Insert(storageTable).
		Columns("key", "value", "updated_at").
		Values(key, value, squirrel.Expr("CURRENT_TIMESTAMP")).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build storage upsert")
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrapf(err, "write storage key %q", key)
	}
	return nil
}

func (s *SQLite) Remove(key string) error {
	query, args, err := squirrel.
		Delete(storageTable).
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build storage delete")
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrapf(err, "remove storage key %q", key)
	}
	return nil
}

// Package sqlite stores records as JSON documents in a single SQLite table
// and evaluates queries with the JSON1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/syntrixbase/livequery/pkg/model"
	"golang.org/x/text/language"
)

type Store struct {
	db    *sql.DB
	table string
}

// Open creates or opens the database at path (":memory:" for a private
// in-memory database) and ensures table exists. String ordering uses the
// collation rules of locale.
func Open(path, table string, locale language.Tag) (*Store, error) {
	db, err := sql.Open(driverFor(locale), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{db: db, table: table}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) applySchema() error {
	_, err := s.db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id   TEXT PRIMARY KEY,
		data TEXT NOT NULL CHECK (json_valid(data))
	)`, s.table))
	return err
}

func (s *Store) Count(ctx context.Context, q model.Query) (int, error) {
	where, args, err := whereClause(q)
	if err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", s.table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, model.WrapError(err)
	}
	return n, nil
}

func (s *Store) Read(ctx context.Context, q model.Query, order []model.Order, pageSize, skip int) ([]model.Document, error) {
	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}
	orderBy, orderArgs := orderClause(order)
	args = append(args, orderArgs...)

	limit := -1
	if pageSize > 0 {
		limit = pageSize
	}
	if skip < 0 {
		skip = 0
	}
	args = append(args, limit, skip)

	query := fmt.Sprintf("SELECT data FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?", s.table, where, orderBy)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, model.WrapError(err)
		}
		doc, err := decode(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, model.WrapError(err)
	}
	return docs, nil
}

func (s *Store) FindOne(ctx context.Context, q model.Query) (model.Document, error) {
	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s ORDER BY rowid LIMIT 1", s.table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return decode(data)
}

func (s *Store) InsertOne(ctx context.Context, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	doc = doc.Clone()
	doc.GenerateIDIfEmpty()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO %s (id, data) VALUES (?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, query, doc.GetID(), string(data)); err != nil {
		if isConstraint(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, q model.Query, doc model.Document) error {
	if err := doc.ValidateDocument(); err != nil {
		return err
	}
	where, args, err := whereClause(q)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.WrapError(err)
	}
	defer tx.Rollback()

	var (
		rowid int64
		oldID string
	)
	query := fmt.Sprintf("SELECT rowid, id FROM %s WHERE %s ORDER BY rowid LIMIT 1", s.table, where)
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&rowid, &oldID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return model.WrapError(err)
	}

	replacement := doc.Clone()
	if replacement.GetID() == "" {
		replacement.SetID(oldID)
	}
	if replacement.GetID() != oldID {
		return model.ErrIDChanged
	}
	data, err := json.Marshal(replacement)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	update := fmt.Sprintf("UPDATE %s SET id = ?, data = ? WHERE rowid = ?", s.table)
	if _, err := tx.ExecContext(ctx, update, replacement.GetID(), string(data), rowid); err != nil {
		if isConstraint(err) {
			return model.ErrExists
		}
		return model.WrapError(err)
	}
	return model.WrapError(tx.Commit())
}

func (s *Store) DeleteOne(ctx context.Context, q model.Query) (model.Document, error) {
	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}

	var data string
	query := fmt.Sprintf(
		"DELETE FROM %[1]s WHERE rowid = (SELECT rowid FROM %[1]s WHERE %[2]s ORDER BY rowid LIMIT 1) RETURNING data",
		s.table, where)
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return decode(data)
}

func (s *Store) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func decode(data string) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

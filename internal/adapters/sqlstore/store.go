// Package sqlstore is a SQLite-backed StoragePort.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS processes (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	body TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fpl (
	id TEXT PRIMARY KEY,
	process_id TEXT NOT NULL REFERENCES processes(id),
	parent_id TEXT
);

CREATE TABLE IF NOT EXISTS bco (
	object_id TEXT PRIMARY KEY,
	etag TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type Store struct {
	db     *sql.DB
	prefix string
	logger *slog.Logger
}

var _ ports.StoragePort = (*Store)(nil)

// Open opens the database file at path, creating the schema if needed.
// An empty path opens a private in-memory database.
func Open(path, objectIDPrefix string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage", "type", "sqlite")

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == "" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	logger.Debug("opening database", "path", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		logger.Error("failed to open database", "path", path, "error", err)
		return nil, domain.NewStorageError("open", path, err)
	}
	if path == "" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, domain.NewStorageError("migrate", path, err)
	}

	logger.Info("connected to database", "path", path)
	return &Store{db: db, prefix: objectIDPrefix, logger: logger}, nil
}

func (s *Store) GetProcess(ctx context.Context, id string) (*domain.Process, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM processes WHERE id = ?`, id).Scan(&body)
	if err != nil {
		return nil, s.readError(domain.ProcessKey(id), err)
	}
	var proc domain.Process
	if err := xjson.Unmarshal([]byte(body), &proc); err != nil {
		return nil, domain.NewStorageError("get", domain.ProcessKey(id), err)
	}
	return &proc, nil
}

func (s *Store) PutProcess(ctx context.Context, proc *domain.Process) error {
	if proc == nil || proc.ID == "" {
		return domain.NewStorageError("put", domain.ProcessKey(""), domain.ErrInvalidInput)
	}
	body, err := xjson.Marshal(proc)
	if err != nil {
		return domain.NewStorageError("put", domain.ProcessKey(proc.ID), err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO processes (id, type, body) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET type = excluded.type, body = excluded.body`,
		proc.ID, proc.Type, string(body))
	if err != nil {
		return domain.NewStorageError("put", domain.ProcessKey(proc.ID), err)
	}
	return nil
}

func (s *Store) GetChain(ctx context.Context, id string) (*domain.FPL, error) {
	var (
		el     domain.FPL
		parent sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, process_id, parent_id FROM fpl WHERE id = ?`, id).
		Scan(&el.ID, &el.ProcessID, &parent)
	if err != nil {
		return nil, s.readError(domain.ChainKey(id), err)
	}
	el.ParentID = parent.String
	return &el, nil
}

func (s *Store) PutChain(ctx context.Context, element domain.FPL) error {
	if element.ID == "" || element.ProcessID == "" {
		return domain.NewStorageError("put", domain.ChainKey(element.ID), domain.ErrInvalidInput)
	}
	var parent sql.NullString
	if element.ParentID != "" {
		parent = sql.NullString{String: element.ParentID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fpl (id, process_id, parent_id) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		element.ID, element.ProcessID, parent)
	if err != nil {
		return domain.NewStorageError("put", domain.ChainKey(element.ID), err)
	}
	return nil
}

func (s *Store) PutBCO(ctx context.Context, doc *domain.BCO) (string, error) {
	if doc == nil {
		return "", domain.NewStorageError("put", domain.BCOKey(""), domain.ErrInvalidInput)
	}
	if doc.ObjectID == "" {
		doc.ObjectID = s.prefix + uuid.NewString()
	}
	body, err := xjson.Marshal(doc)
	if err != nil {
		return "", domain.NewStorageError("put", domain.BCOKey(doc.ObjectID), err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bco (object_id, etag, body) VALUES (?, ?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET etag = excluded.etag, body = excluded.body`,
		doc.ObjectID, doc.ETag, string(body))
	if err != nil {
		return "", domain.NewStorageError("put", domain.BCOKey(doc.ObjectID), err)
	}
	s.logger.Debug("bco stored", "object_id", doc.ObjectID)
	return doc.ObjectID, nil
}

func (s *Store) GetBCO(ctx context.Context, objectID string) (*domain.BCO, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM bco WHERE object_id = ?`, objectID).Scan(&body)
	if err != nil {
		return nil, s.readError(domain.BCOKey(objectID), err)
	}
	var doc domain.BCO
	if err := xjson.Unmarshal([]byte(body), &doc); err != nil {
		return nil, domain.NewStorageError("get", domain.BCOKey(objectID), err)
	}
	return &doc, nil
}

// ListBCOs returns stored object ids, oldest first.
func (s *Store) ListBCOs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT object_id FROM bco ORDER BY created_at, object_id`)
	if err != nil {
		return nil, domain.NewStorageError("list", domain.BCOPrefix, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.NewStorageError("list", domain.BCOPrefix, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (s *Store) readError(key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("key not found", "key", key)
		return domain.NewKeyNotFoundError(key)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return domain.NewStorageError("get", key, domain.ErrClosed)
	}
	return domain.NewStorageError("get", key, err)
}

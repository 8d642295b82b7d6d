// Package store persists a built galaxy to SQLite so it can be queried
// without re-parsing the catalogues.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ppiankov/astrolabium/internal/crossref"
	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/galaxy"
	"github.com/ppiankov/astrolabium/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS systems (
	position INTEGER PRIMARY KEY,
	wds      TEXT NOT NULL UNIQUE,
	name     TEXT NOT NULL,
	payload  BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS systems_name ON systems(name);
CREATE TABLE IF NOT EXISTS stars (
	name      TEXT NOT NULL,
	component TEXT NOT NULL,
	wds       TEXT NOT NULL REFERENCES systems(wds)
);
CREATE INDEX IF NOT EXISTS stars_name ON stars(name);
CREATE TABLE IF NOT EXISTS warnings (
	position INTEGER PRIMARY KEY,
	kind     TEXT NOT NULL,
	key      TEXT NOT NULL,
	message  TEXT NOT NULL
);`

// Store holds one galaxy snapshot. Save replaces the previous snapshot.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", errors.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.WrapIO("mkdir", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save replaces the stored galaxy and warnings in one transaction
func (s *Store) Save(ctx context.Context, g *galaxy.Galaxy, warnings []crossref.Warning) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"stars", "systems", "warnings"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, sys := range g.Systems() {
		payload, err := json.Marshal(sys)
		if err != nil {
			return fmt.Errorf("encode %s: %w", sys.WDS, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO systems(position, wds, name, payload) VALUES(?, ?, ?, ?)`,
			i, sys.WDS, sys.Name, payload); err != nil {
			return fmt.Errorf("insert system %s: %w", sys.WDS, err)
		}
		for _, star := range sys.Stars() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO stars(name, component, wds) VALUES(?, ?, ?)`,
				star.Name, star.Component, sys.WDS); err != nil {
				return fmt.Errorf("insert star %s: %w", star.Name, err)
			}
		}
	}

	for i, w := range warnings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO warnings(position, kind, key, message) VALUES(?, ?, ?, ?)`,
			i, string(w.Kind), w.Key, w.Message); err != nil {
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load rebuilds the stored galaxy. An empty store yields an empty galaxy.
func (s *Store) Load(ctx context.Context) (*galaxy.Galaxy, []crossref.Warning, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM systems ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("select systems: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var systems []*model.StarSystem
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		sys, err := decodeSystem(payload)
		if err != nil {
			return nil, nil, err
		}
		systems = append(systems, sys)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	warnings, err := s.Warnings(ctx)
	if err != nil {
		return nil, nil, err
	}
	return galaxy.New(systems), warnings, nil
}

// Warnings returns the stored cross-reference warnings in build order
func (s *Store) Warnings(ctx context.Context) ([]crossref.Warning, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, key, message FROM warnings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var warnings []crossref.Warning
	for rows.Next() {
		var w crossref.Warning
		var kind string
		if err := rows.Scan(&kind, &w.Key, &w.Message); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		w.Kind = crossref.WarningKind(kind)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}

// Get looks a system up by canonical name, WDS designation, or the name
// of one of its stars, in that order
func (s *Store) Get(ctx context.Context, name string) (*model.StarSystem, error) {
	queries := []string{
		`SELECT payload FROM systems WHERE name = ? ORDER BY position LIMIT 1`,
		`SELECT payload FROM systems WHERE wds = ? LIMIT 1`,
		`SELECT sy.payload FROM stars st JOIN systems sy ON sy.wds = st.wds
			WHERE st.name = ? ORDER BY sy.position LIMIT 1`,
	}
	for _, q := range queries {
		var payload []byte
		err := s.db.QueryRowContext(ctx, q, name).Scan(&payload)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("select %q: %w", name, err)
		}
		return decodeSystem(payload)
	}
	return nil, errors.NewNotFoundError("system", name)
}

// Count returns the number of stored systems
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM systems`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count systems: %w", err)
	}
	return n, nil
}

func decodeSystem(payload []byte) (*model.StarSystem, error) {
	var sys model.StarSystem
	if err := json.Unmarshal(payload, &sys); err != nil {
		return nil, fmt.Errorf("decode system: %w", err)
	}
	return &sys, nil
}

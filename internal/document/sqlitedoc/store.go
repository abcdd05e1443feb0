package sqlitedoc

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/nodecheck/internal/document"
)

//go:embed schema.sql
var schemaSQL string

const (
	nodePrefix = "node:"
	pathPrefix = "path:"
)

// ErrDocumentNotFound is returned when a mutation names an unknown document.
var ErrDocumentNotFound = errors.New("sqlitedoc: document not found")

// ErrDocumentExists is returned by CreateDocument for a duplicate id.
var ErrDocumentExists = errors.New("sqlitedoc: document already exists")

// Store is a tree document store backed by SQLite.
type Store struct {
	db *sql.DB

	// mu orders reads against mutations so a Resolve never observes a
	// half-applied change across its several queries.
	mu sync.RWMutex

	lmu       sync.Mutex
	listeners map[string]document.ChangeFunc
}

var _ document.Collaborator = (*Store)(nil)

// Open creates or opens a store at path. ":memory:" gives a private
// in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement, which drives RemoveNode's cascade
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and each :memory:
	// connection would otherwise be its own database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{
		db:        db,
		listeners: make(map[string]document.ChangeFunc),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// NodeKey returns the primary key for a node id.
func NodeKey(id int64) document.Key {
	return document.Key(nodePrefix + strconv.FormatInt(id, 10))
}

// PathKey returns the alternate key for a label path inside a document.
func PathKey(documentID string, labels ...string) document.Key {
	return document.Key(pathPrefix + documentID + "/" + strings.Join(labels, "/"))
}

// Parse implements document.Resolver. It accepts node:<id> and
// path:<document>/<label>[/<label>...] without touching the database.
func (s *Store) Parse(repr string) (document.Key, bool) {
	switch {
	case strings.HasPrefix(repr, nodePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(repr, nodePrefix), 10, 64)
		if err != nil || id <= 0 {
			return "", false
		}
		return NodeKey(id), true
	case strings.HasPrefix(repr, pathPrefix):
		if _, _, ok := splitPath(strings.TrimPrefix(repr, pathPrefix)); !ok {
			return "", false
		}
		return document.Key(repr), true
	}
	return "", false
}

func splitPath(p string) (documentID string, labels []string, ok bool) {
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return "", nil, false
	}
	for _, part := range parts {
		if part == "" {
			return "", nil, false
		}
	}
	return parts[0], parts[1:], true
}

// Resolve implements document.Resolver.
func (s *Store) Resolve(ctx context.Context, key document.Key) (document.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.lookupID(ctx, s.db, key)
	if err != nil {
		return document.Node{}, err
	}
	return s.load(ctx, id)
}

// OwnerDocumentID implements document.Collaborator.
func (s *Store) OwnerDocumentID(node document.Node) string {
	return node.Document
}

// AddListener implements document.Collaborator.
func (s *Store) AddListener(documentID string, fn document.ChangeFunc) error {
	if fn == nil {
		return errors.New("sqlitedoc: nil listener")
	}
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners[documentID] = fn
	return nil
}

// RemoveListener implements document.Collaborator.
func (s *Store) RemoveListener(documentID string) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	delete(s.listeners, documentID)
}

// Listening reports whether a listener is registered for the document.
func (s *Store) Listening(documentID string) bool {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	_, ok := s.listeners[documentID]
	return ok
}

func (s *Store) notify(documentID string) {
	s.lmu.Lock()
	fn := s.listeners[documentID]
	s.lmu.Unlock()

	if fn != nil {
		fn(documentID)
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// lookupID maps a parsed key to a node id, or document.ErrNotFound.
func (s *Store) lookupID(ctx context.Context, q querier, key document.Key) (int64, error) {
	repr := string(key)
	switch {
	case strings.HasPrefix(repr, nodePrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(repr, nodePrefix), 10, 64)
		if err != nil {
			return 0, document.ErrNotFound
		}
		var found int64
		err = q.QueryRowContext(ctx, `SELECT id FROM nodes WHERE id = ?`, id).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, document.ErrNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("lookup %s: %w", repr, err)
		}
		return found, nil

	case strings.HasPrefix(repr, pathPrefix):
		docID, labels, ok := splitPath(strings.TrimPrefix(repr, pathPrefix))
		if !ok {
			return 0, document.ErrNotFound
		}
		var parent sql.NullInt64
		for _, label := range labels {
			var id int64
			err := q.QueryRowContext(ctx, `
				SELECT id FROM nodes
				WHERE document_id = ? AND parent_id IS ? AND label = ?
				ORDER BY position, id
				LIMIT 1
			`, docID, parent, label).Scan(&id)
			if errors.Is(err, sql.ErrNoRows) {
				return 0, document.ErrNotFound
			}
			if err != nil {
				return 0, fmt.Errorf("lookup %s: %w", repr, err)
			}
			parent = sql.NullInt64{Int64: id, Valid: true}
		}
		return parent.Int64, nil
	}
	return 0, document.ErrNotFound
}

// load reads a full node snapshot. Callers hold at least the read lock.
func (s *Store) load(ctx context.Context, id int64) (document.Node, error) {
	var (
		node   document.Node
		parent sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT document_id, parent_id, kind, label FROM nodes WHERE id = ?
	`, id).Scan(&node.Document, &parent, &node.Kind, &node.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Node{}, document.ErrNotFound
	}
	if err != nil {
		return document.Node{}, fmt.Errorf("load node %d: %w", id, err)
	}
	node.Key = NodeKey(id)

	labels, err := s.labelPath(ctx, id)
	if err != nil {
		return document.Node{}, err
	}
	node.Ref = refFor(id, node.Document, labels)

	if node.Properties, err = s.loadProperties(ctx, id); err != nil {
		return document.Node{}, err
	}
	if node.References, err = s.loadReferences(ctx, id); err != nil {
		return document.Node{}, err
	}
	if node.Children, err = s.loadChildren(ctx, id); err != nil {
		return document.Node{}, err
	}
	return node, nil
}

func (s *Store) labelPath(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE ancestry(id, parent_id, label, depth) AS (
			SELECT id, parent_id, label, 0 FROM nodes WHERE id = ?
			UNION ALL
			SELECT n.id, n.parent_id, n.label, a.depth + 1
			FROM nodes n JOIN ancestry a ON n.id = a.parent_id
		)
		SELECT label FROM ancestry ORDER BY depth DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("label path %d: %w", id, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("label path %d: %w", id, err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (s *Store) loadProperties(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM properties WHERE node_id = ? ORDER BY name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load properties %d: %w", id, err)
	}
	defer rows.Close()

	props := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("load properties %d: %w", id, err)
		}
		props[name] = value
	}
	return props, rows.Err()
}

func (s *Store) loadReferences(ctx context.Context, id int64) (map[string]document.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, target_id FROM refs WHERE node_id = ? ORDER BY name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load references %d: %w", id, err)
	}
	defer rows.Close()

	refs := make(map[string]document.Key)
	for rows.Next() {
		var (
			name   string
			target int64
		)
		if err := rows.Scan(&name, &target); err != nil {
			return nil, fmt.Errorf("load references %d: %w", id, err)
		}
		refs[name] = NodeKey(target)
	}
	return refs, rows.Err()
}

func (s *Store) loadChildren(ctx context.Context, id int64) ([]document.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM nodes WHERE parent_id = ? ORDER BY position, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load children %d: %w", id, err)
	}
	defer rows.Close()

	var children []document.Key
	for rows.Next() {
		var child int64
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("load children %d: %w", id, err)
		}
		children = append(children, NodeKey(child))
	}
	return children, rows.Err()
}

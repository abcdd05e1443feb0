package sqlitedoc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/nodecheck/internal/check"
	"github.com/roach88/nodecheck/internal/document"
)

func refFor(id int64, documentID string, labels []string) check.Ref {
	return check.NewRef(string(NodeKey(id)), string(PathKey(documentID, labels...)))
}

// NewNode describes a node to insert.
type NewNode struct {
	Kind       string
	Label      string
	Properties map[string]string
}

// mutate runs fn in a transaction under the write lock and notifies the
// listener of the document fn reports as changed. fn returns an empty
// document id when nothing changed.
func (s *Store) mutate(ctx context.Context, op string, fn func(tx *sql.Tx) (string, error)) error {
	docID, err := s.mutateLocked(ctx, op, fn)
	if err != nil {
		return err
	}
	if docID != "" {
		s.notify(docID)
	}
	return nil
}

func (s *Store) mutateLocked(ctx context.Context, op string, fn func(tx *sql.Tx) (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%s: begin: %w", op, err)
	}
	docID, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%s: commit: %w", op, err)
	}
	return docID, nil
}

// CreateDocument adds an empty document.
func (s *Store) CreateDocument(ctx context.Context, documentID string) error {
	if documentID == "" || strings.Contains(documentID, "/") {
		return fmt.Errorf("create document: invalid id %q", documentID)
	}
	return s.mutate(ctx, "create document", func(tx *sql.Tx) (string, error) {
		_, err := tx.ExecContext(ctx, `INSERT INTO documents (id) VALUES (?)`, documentID)
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return "", fmt.Errorf("%w: %s", ErrDocumentExists, documentID)
		}
		if err != nil {
			return "", err
		}
		return documentID, nil
	})
}

// AddNode inserts a node as the last child of parent, or as a root of the
// document when parent is empty. It returns the new node's primary key.
func (s *Store) AddNode(ctx context.Context, documentID string, parent document.Key, n NewNode) (document.Key, error) {
	var key document.Key
	err := s.mutate(ctx, "add node", func(tx *sql.Tx) (string, error) {
		id, err := s.insertNode(ctx, tx, documentID, parent, n)
		if err != nil {
			return "", err
		}
		key = NodeKey(id)
		return documentID, nil
	})
	return key, err
}

func (s *Store) insertNode(ctx context.Context, tx *sql.Tx, documentID string, parent document.Key, n NewNode) (int64, error) {
	if n.Kind == "" {
		return 0, errors.New("node kind is required")
	}
	if n.Label == "" || strings.Contains(n.Label, "/") {
		return 0, fmt.Errorf("invalid label %q", n.Label)
	}

	var exists int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, documentID).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	}

	var parentID sql.NullInt64
	if parent != "" {
		id, err := s.lookupID(ctx, tx, parent)
		if err != nil {
			return 0, fmt.Errorf("parent %s: %w", parent, err)
		}
		var parentDoc string
		if err := tx.QueryRowContext(ctx, `SELECT document_id FROM nodes WHERE id = ?`, id).Scan(&parentDoc); err != nil {
			return 0, err
		}
		if parentDoc != documentID {
			return 0, fmt.Errorf("parent %s belongs to document %q", parent, parentDoc)
		}
		parentID = sql.NullInt64{Int64: id, Valid: true}
	}

	var position int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM nodes
		WHERE document_id = ? AND parent_id IS ?
	`, documentID, parentID).Scan(&position)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (document_id, parent_id, kind, label, position)
		VALUES (?, ?, ?, ?, ?)
	`, documentID, parentID, n.Kind, n.Label, position)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO properties (node_id, name, value) VALUES (?, ?, ?)
		`, id, name, n.Properties[name]); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// ownerOf resolves key inside tx and returns its id and document.
func (s *Store) ownerOf(ctx context.Context, tx *sql.Tx, key document.Key) (int64, string, error) {
	id, err := s.lookupID(ctx, tx, key)
	if err != nil {
		return 0, "", fmt.Errorf("%s: %w", key, err)
	}
	var docID string
	if err := tx.QueryRowContext(ctx, `SELECT document_id FROM nodes WHERE id = ?`, id).Scan(&docID); err != nil {
		return 0, "", err
	}
	return id, docID, nil
}

// SetProperty sets or replaces a property value.
func (s *Store) SetProperty(ctx context.Context, key document.Key, name, value string) error {
	return s.mutate(ctx, "set property", func(tx *sql.Tx) (string, error) {
		id, docID, err := s.ownerOf(ctx, tx, key)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO properties (node_id, name, value) VALUES (?, ?, ?)
			ON CONFLICT(node_id, name) DO UPDATE SET value = excluded.value
		`, id, name, value)
		return docID, err
	})
}

// DeleteProperty removes a property. Removing an unset property still
// counts as a change.
func (s *Store) DeleteProperty(ctx context.Context, key document.Key, name string) error {
	return s.mutate(ctx, "delete property", func(tx *sql.Tx) (string, error) {
		id, docID, err := s.ownerOf(ctx, tx, key)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM properties WHERE node_id = ? AND name = ?`, id, name)
		return docID, err
	})
}

// SetReference points the named reference of key at target. The target must
// exist now; it may be removed later, leaving the reference dangling.
func (s *Store) SetReference(ctx context.Context, key document.Key, name string, target document.Key) error {
	return s.mutate(ctx, "set reference", func(tx *sql.Tx) (string, error) {
		id, docID, err := s.ownerOf(ctx, tx, key)
		if err != nil {
			return "", err
		}
		targetID, err := s.lookupID(ctx, tx, target)
		if err != nil {
			return "", fmt.Errorf("target %s: %w", target, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO refs (node_id, name, target_id) VALUES (?, ?, ?)
			ON CONFLICT(node_id, name) DO UPDATE SET target_id = excluded.target_id
		`, id, name, targetID)
		return docID, err
	})
}

// RemoveNode deletes a node together with its subtree.
func (s *Store) RemoveNode(ctx context.Context, key document.Key) error {
	return s.mutate(ctx, "remove node", func(tx *sql.Tx) (string, error) {
		id, docID, err := s.ownerOf(ctx, tx, key)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
		return docID, err
	})
}

// Touch notifies the document's listener without changing anything. It is
// the store-level equivalent of a no-op edit.
func (s *Store) Touch(ctx context.Context, documentID string) error {
	return s.mutate(ctx, "touch", func(tx *sql.Tx) (string, error) {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE id = ?`, documentID).Scan(&exists); err != nil {
			return "", err
		}
		if exists == 0 {
			return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
		}
		return documentID, nil
	})
}

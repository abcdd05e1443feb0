package sqlitedoc

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nodecheck/internal/document"
)

// TreeFile is the YAML form of a whole document.
//
//	document: shop
//	nodes:
//	  - kind: Catalog
//	    label: catalog
//	    properties: {name: Main}
//	    references: {featured: catalog/widget}
//	    children:
//	      - kind: Product
//	        label: widget
//
// Reference targets are label paths inside the same document.
type TreeFile struct {
	Document string     `yaml:"document"`
	Nodes    []TreeNode `yaml:"nodes"`
}

// TreeNode is one node of a TreeFile.
type TreeNode struct {
	Kind       string            `yaml:"kind"`
	Label      string            `yaml:"label"`
	Properties map[string]string `yaml:"properties,omitempty"`
	References map[string]string `yaml:"references,omitempty"`
	Children   []TreeNode        `yaml:"children,omitempty"`
}

// ParseTree decodes a TreeFile, rejecting unknown fields.
func ParseTree(r io.Reader) (TreeFile, error) {
	var tf TreeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return TreeFile{}, fmt.Errorf("parse tree: %w", err)
	}
	if tf.Document == "" {
		return TreeFile{}, fmt.Errorf("parse tree: document id is required")
	}
	return tf, nil
}

// ImportYAML creates the document described by r in one transaction and
// returns its id.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (string, error) {
	tf, err := ParseTree(r)
	if err != nil {
		return "", err
	}
	if err := s.Import(ctx, tf); err != nil {
		return "", err
	}
	return tf.Document, nil
}

// Import creates the document described by tf in one transaction.
func (s *Store) Import(ctx context.Context, tf TreeFile) error {
	if tf.Document == "" || strings.Contains(tf.Document, "/") {
		return fmt.Errorf("import: invalid document id %q", tf.Document)
	}
	return s.mutate(ctx, "import", func(tx *sql.Tx) (string, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO documents (id) VALUES (?)`, tf.Document); err != nil {
			return "", fmt.Errorf("%w: %s", ErrDocumentExists, tf.Document)
		}

		type pendingRef struct {
			from   int64
			name   string
			target string
		}
		var pending []pendingRef

		var insert func(parent document.Key, nodes []TreeNode) error
		insert = func(parent document.Key, nodes []TreeNode) error {
			for _, n := range nodes {
				id, err := s.insertNode(ctx, tx, tf.Document, parent, NewNode{
					Kind:       n.Kind,
					Label:      n.Label,
					Properties: n.Properties,
				})
				if err != nil {
					return err
				}
				names := make([]string, 0, len(n.References))
				for name := range n.References {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					pending = append(pending, pendingRef{from: id, name: name, target: n.References[name]})
				}
				if err := insert(NodeKey(id), n.Children); err != nil {
					return err
				}
			}
			return nil
		}
		if err := insert("", tf.Nodes); err != nil {
			return "", err
		}

		for _, ref := range pending {
			target := PathKey(tf.Document, strings.Split(ref.target, "/")...)
			targetID, err := s.lookupID(ctx, tx, target)
			if err != nil {
				return "", fmt.Errorf("reference %s of node %d: %w", ref.name, ref.from, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO refs (node_id, name, target_id) VALUES (?, ?, ?)
			`, ref.from, ref.name, targetID); err != nil {
				return "", err
			}
		}
		return tf.Document, nil
	})
}

// Package document defines what the job engine needs from a document
// backend: turning target representations into keys, resolving keys to
// nodes, and notifying about changes.
//
// The engine never holds a live handle into a document. Every access goes
// through Resolve, which may fail at any time because the node was deleted.
package document

import (
	"context"
	"errors"

	"github.com/roach88/nodecheck/internal/check"
)

// ErrNotFound is returned by Resolve when a key no longer names a node.
var ErrNotFound = errors.New("document: node not found")

// Key is a parsed, backend-specific node address. It is only meaningful to
// the backend that produced it.
type Key string

// Node is a point-in-time copy of one node, taken under the backend's read
// lock. Mutating it has no effect on the document.
type Node struct {
	Key        Key
	Ref        check.Ref
	Document   string
	Kind       string
	Label      string
	Properties map[string]string
	Children   []Key
	// References maps a reference name to the key of its target. The target
	// may no longer exist.
	References map[string]Key
}

// Property returns a property value and whether it is set.
func (n Node) Property(name string) (string, bool) {
	v, ok := n.Properties[name]
	return v, ok
}

// ChangeFunc is invoked after every committed mutation of a document.
type ChangeFunc func(documentID string)

// Resolver resolves keys to nodes.
type Resolver interface {
	// Parse deserialises one representation of a target. It does not check
	// that the node exists.
	Parse(repr string) (Key, bool)

	// Resolve returns the node for key, or ErrNotFound.
	Resolve(ctx context.Context, key Key) (Node, error)
}

// Collaborator is the full document backend contract used by the engine.
type Collaborator interface {
	Resolver

	// OwnerDocumentID returns the id of the document containing node.
	OwnerDocumentID(node Node) string

	// AddListener registers fn for changes of the given document, replacing
	// any listener already registered for it.
	AddListener(documentID string, fn ChangeFunc) error

	// RemoveListener unregisters the document's listener. Removing an absent
	// listener is a no-op.
	RemoveListener(documentID string)
}

// ParseRef tries every form of ref in order and returns the first key the
// resolver accepts.
func ParseRef(r Resolver, ref check.Ref) (Key, bool) {
	for _, form := range ref.Forms() {
		if key, ok := r.Parse(form); ok {
			return key, true
		}
	}
	return "", false
}

// ResolveRef resolves the first parseable form of ref that names an
// existing node. It returns ErrNotFound when no form resolves.
func ResolveRef(ctx context.Context, r Resolver, ref check.Ref) (Node, error) {
	for _, form := range ref.Forms() {
		key, ok := r.Parse(form)
		if !ok {
			continue
		}
		node, err := r.Resolve(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Node{}, err
		}
		return node, nil
	}
	return Node{}, ErrNotFound
}

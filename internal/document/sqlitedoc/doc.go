// Package sqlitedoc is a SQLite-backed tree document store implementing
// document.Collaborator.
//
// Every node has two representations:
//
//	node:<id>                      primary, stable for the node's lifetime
//	path:<document>/<label>/...    alternate, follows labels from a root
//
// Mutations run under the store's write lock inside a transaction. The
// owning document's listener is invoked after commit, with no lock held, so
// listeners may call back into the store.
package sqlitedoc

package sqlitedoc

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodecheck/internal/document"
)

// createTestStore opens a file-backed store and imports testdata/shop.yaml.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "doc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f, err := os.Open(filepath.Join("testdata", "shop.yaml"))
	require.NoError(t, err)
	defer f.Close()

	docID, err := s.ImportYAML(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, "shop", docID)
	return s
}

// recorder counts change notifications per document.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) fn(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, docID)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateDocument(context.Background(), "d"))
	err = s.CreateDocument(context.Background(), "d")
	assert.ErrorIs(t, err, ErrDocumentExists)
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	s := createTestStore(t)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestParse(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		repr string
		ok   bool
	}{
		{"node:1", true},
		{"node:0", false},
		{"node:abc", false},
		{"path:shop/catalog", true},
		{"path:shop/catalog/widget", true},
		{"path:shop", false},
		{"path:shop//widget", false},
		{"mps:r:1234", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.repr, func(t *testing.T) {
			_, ok := s.Parse(tt.repr)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestResolve_BothRepresentations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	byPath, err := s.Resolve(ctx, PathKey("shop", "catalog", "widget"))
	require.NoError(t, err)

	byID, err := s.Resolve(ctx, byPath.Key)
	require.NoError(t, err)

	assert.Equal(t, byPath, byID)
	assert.Equal(t, "Product", byID.Kind)
	assert.Equal(t, "shop", s.OwnerDocumentID(byID))
	assert.Equal(t, string(byID.Key), byID.Ref.Primary)
	assert.Equal(t, []string{"path:shop/catalog/widget"}, byID.Ref.Alternates)

	name, ok := byID.Property("name")
	assert.True(t, ok)
	assert.Equal(t, "Widget", name)
}

func TestResolve_ChildrenAndReferences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	catalog, err := s.Resolve(ctx, PathKey("shop", "catalog"))
	require.NoError(t, err)
	require.Len(t, catalog.Children, 2)

	widget, err := s.Resolve(ctx, catalog.Children[0])
	require.NoError(t, err)
	assert.Equal(t, "widget", widget.Label)
	assert.Equal(t, widget.Key, catalog.References["featured"])

	gadget, err := s.Resolve(ctx, catalog.Children[1])
	require.NoError(t, err)
	_, ok := gadget.Property("name")
	assert.False(t, ok)
}

func TestResolve_Missing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Resolve(ctx, NodeKey(999))
	assert.ErrorIs(t, err, document.ErrNotFound)

	_, err = s.Resolve(ctx, PathKey("shop", "catalog", "nope"))
	assert.ErrorIs(t, err, document.ErrNotFound)

	_, err = s.Resolve(ctx, PathKey("other", "catalog"))
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestMutations_NotifyListener(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := &recorder{}
	require.NoError(t, s.AddListener("shop", rec.fn))

	widget := PathKey("shop", "catalog", "widget")
	gadget := PathKey("shop", "catalog", "gadget")

	require.NoError(t, s.SetProperty(ctx, widget, "price", "12"))
	require.NoError(t, s.DeleteProperty(ctx, widget, "price"))
	require.NoError(t, s.SetReference(ctx, widget, "related", gadget))
	_, err := s.AddNode(ctx, "shop", PathKey("shop", "catalog"), NewNode{Kind: "Product", Label: "gizmo"})
	require.NoError(t, err)
	require.NoError(t, s.Touch(ctx, "shop"))
	require.NoError(t, s.RemoveNode(ctx, gadget))

	assert.Equal(t, 6, rec.count())
	for _, doc := range rec.calls {
		assert.Equal(t, "shop", doc)
	}

	s.RemoveListener("shop")
	assert.False(t, s.Listening("shop"))
	require.NoError(t, s.Touch(ctx, "shop"))
	assert.Equal(t, 6, rec.count())
}

func TestMutations_FailedMutationDoesNotNotify(t *testing.T) {
	s := createTestStore(t)
	rec := &recorder{}
	require.NoError(t, s.AddListener("shop", rec.fn))

	err := s.SetProperty(context.Background(), NodeKey(999), "name", "x")
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.Equal(t, 0, rec.count())
}

func TestListener_MayCallBackIntoStore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var resolved document.Node
	require.NoError(t, s.AddListener("shop", func(string) {
		n, err := s.Resolve(ctx, PathKey("shop", "catalog", "widget"))
		if err == nil {
			resolved = n
		}
	}))

	require.NoError(t, s.SetProperty(ctx, PathKey("shop", "catalog", "widget"), "name", "Renamed"))
	assert.Equal(t, "Renamed", resolved.Properties["name"])
}

func TestRemoveNode_CascadesAndLeavesDanglingReference(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	widget, err := s.Resolve(ctx, PathKey("shop", "catalog", "widget"))
	require.NoError(t, err)
	_, err = s.AddNode(ctx, "shop", widget.Key, NewNode{Kind: "Variant", Label: "blue"})
	require.NoError(t, err)

	require.NoError(t, s.RemoveNode(ctx, widget.Key))

	_, err = s.Resolve(ctx, widget.Key)
	assert.ErrorIs(t, err, document.ErrNotFound)
	_, err = s.Resolve(ctx, PathKey("shop", "catalog", "widget", "blue"))
	assert.ErrorIs(t, err, document.ErrNotFound)

	catalog, err := s.Resolve(ctx, PathKey("shop", "catalog"))
	require.NoError(t, err)
	assert.Equal(t, widget.Key, catalog.References["featured"])
	assert.Len(t, catalog.Children, 1)
}

func TestNodeIDsAreNotReused(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	gadget, err := s.Resolve(ctx, PathKey("shop", "catalog", "gadget"))
	require.NoError(t, err)
	require.NoError(t, s.RemoveNode(ctx, gadget.Key))

	added, err := s.AddNode(ctx, "shop", PathKey("shop", "catalog"), NewNode{Kind: "Product", Label: "gadget"})
	require.NoError(t, err)
	assert.NotEqual(t, gadget.Key, added)

	_, err = s.Resolve(ctx, gadget.Key)
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestAddNode_Validation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.AddNode(ctx, "missing", "", NewNode{Kind: "K", Label: "x"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = s.AddNode(ctx, "shop", "", NewNode{Label: "x"})
	assert.Error(t, err)

	_, err = s.AddNode(ctx, "shop", "", NewNode{Kind: "K", Label: "a/b"})
	assert.Error(t, err)

	require.NoError(t, s.CreateDocument(ctx, "other"))
	_, err = s.AddNode(ctx, "other", PathKey("shop", "catalog"), NewNode{Kind: "K", Label: "x"})
	assert.Error(t, err)
}

func TestImport_Errors(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.ImportYAML(ctx, strings.NewReader("nodes: []\n"))
	assert.Error(t, err)

	_, err = s.ImportYAML(ctx, strings.NewReader("document: d\nbogus: 1\n"))
	assert.Error(t, err)

	_, err = s.ImportYAML(ctx, strings.NewReader(`document: d
nodes:
  - kind: A
    label: a
    references: {to: a/missing}
`))
	assert.ErrorIs(t, err, document.ErrNotFound)

	// The failed import rolled back, so the id is still free.
	require.NoError(t, s.CreateDocument(ctx, "d"))
}

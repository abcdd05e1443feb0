package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodecheck/internal/check"
)

// prefixResolver accepts "a:" forms only and knows a fixed set of keys.
type prefixResolver struct {
	nodes map[Key]Node
	err   error
}

func (r prefixResolver) Parse(repr string) (Key, bool) {
	if !strings.HasPrefix(repr, "a:") {
		return "", false
	}
	return Key(repr), true
}

func (r prefixResolver) Resolve(_ context.Context, key Key) (Node, error) {
	if r.err != nil {
		return Node{}, r.err
	}
	n, ok := r.nodes[key]
	if !ok {
		return Node{}, ErrNotFound
	}
	return n, nil
}

func TestParseRef_TriesAlternates(t *testing.T) {
	r := prefixResolver{}

	key, ok := ParseRef(r, check.NewRef("b:1", "a:1"))
	require.True(t, ok)
	assert.Equal(t, Key("a:1"), key)

	_, ok = ParseRef(r, check.NewRef("b:1", "c:1"))
	assert.False(t, ok)
}

func TestResolveRef(t *testing.T) {
	r := prefixResolver{nodes: map[Key]Node{"a:2": {Key: "a:2", Kind: "Thing"}}}

	n, err := ResolveRef(context.Background(), r, check.NewRef("a:1", "b:2", "a:2"))
	require.NoError(t, err)
	assert.Equal(t, "Thing", n.Kind)

	_, err = ResolveRef(context.Background(), r, check.NewRef("a:9"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRef_PropagatesBackendErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	r := prefixResolver{err: boom}

	_, err := ResolveRef(context.Background(), r, check.NewRef("a:1"))
	assert.ErrorIs(t, err, boom)
}

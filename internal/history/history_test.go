package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nodecheck/internal/check"
)

func result(n int) check.Result {
	msgs := []check.Message{{
		Affected: check.NewRef(fmt.Sprintf("node:%d", n)),
		Location: check.WholeNodeLocation(),
		Severity: check.SeverityInfo,
		Text:     fmt.Sprintf("result %d", n),
	}}
	r, err := check.NewResult(msgs, time.Unix(int64(n), 0))
	if err != nil {
		panic(err)
	}
	return r
}

func texts(rs []check.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Messages[0].Text
	}
	return out
}

func TestBuffer_Empty(t *testing.T) {
	b := New(Capacity)

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, Capacity, b.Cap())
	_, ok := b.Latest()
	assert.False(t, ok)
	assert.Empty(t, b.Slice())

	_, err := b.At(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestBuffer_AppendOrder(t *testing.T) {
	b := New(3)
	for i := 1; i <= 3; i++ {
		b = b.Append(result(i))
	}

	assert.Equal(t, []string{"result 1", "result 2", "result 3"}, texts(b.Slice()))

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "result 3", latest.Messages[0].Text)

	first, err := b.At(0)
	require.NoError(t, err)
	assert.Equal(t, "result 1", first.Messages[0].Text)
}

func TestBuffer_Wraparound(t *testing.T) {
	b := New(3)
	for i := 1; i <= 5; i++ {
		b = b.Append(result(i))
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []string{"result 3", "result 4", "result 5"}, texts(b.Slice()))

	r, err := b.At(2)
	require.NoError(t, err)
	assert.Equal(t, "result 5", r.Messages[0].Text)

	_, err = b.At(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = b.At(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := New(Capacity)
	for i := 0; i < Capacity*3; i++ {
		b = b.Append(result(i))
		assert.LessOrEqual(t, b.Len(), Capacity)
	}
	assert.Equal(t, Capacity, b.Len())

	latest, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("result %d", Capacity*3-1), latest.Messages[0].Text)
}

func TestBuffer_AppendLeavesSnapshotIntact(t *testing.T) {
	old := New(2).Append(result(1)).Append(result(2))
	oldSlice := texts(old.Slice())

	next := old.Append(result(3))

	assert.Equal(t, oldSlice, texts(old.Slice()))
	assert.Equal(t, []string{"result 2", "result 3"}, texts(next.Slice()))
}

func TestBuffer_ZeroCapacity(t *testing.T) {
	var b Buffer
	b = b.Append(result(1))
	assert.Equal(t, 0, b.Len())
	_, ok := b.Latest()
	assert.False(t, ok)
}

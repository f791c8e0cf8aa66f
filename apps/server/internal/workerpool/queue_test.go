package workerpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushIDs(q *queue[int], ids ...string) {
	for _, id := range ids {
		q.push(&task[int]{id: id})
	}
}

func popAll(q *queue[int]) []string {
	var out []string
	for {
		t, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, t.id)
	}
}

func TestQueue_LIFO(t *testing.T) {
	q := newQueue[int](OrderLIFO)
	pushIDs(q, "a", "b", "c")

	assert.Equal(t, []string{"c", "b", "a"}, popAll(q))
}

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[int](OrderFIFO)
	pushIDs(q, "a", "b", "c")

	assert.Equal(t, []string{"a", "b", "c"}, popAll(q))
}

func TestQueue_Remove(t *testing.T) {
	q := newQueue[int](OrderFIFO)
	pushIDs(q, "a", "b", "c")

	assert.True(t, q.remove("b"))
	assert.False(t, q.remove("b"), "second remove must miss")
	assert.Equal(t, 2, q.len())
	assert.Equal(t, []string{"a", "c"}, popAll(q))
}

func TestRegistry_SettlesOnce(t *testing.T) {
	r := newRegistry[string]()
	f := &Future[string]{id: "t1", done: make(chan struct{})}
	r.register(f)
	require.Equal(t, 1, r.len())

	assert.True(t, r.settle("t1", "first", nil))
	assert.False(t, r.settle("t1", "second", nil), "late outcome must be dropped")

	<-f.Done()
	assert.Equal(t, "first", f.val)
	assert.Equal(t, 0, r.len())
}

func TestRegistry_UnknownID(t *testing.T) {
	r := newRegistry[string]()

	assert.False(t, r.settle("missing", "", nil))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderLIFO, o)

	o, err = ParseOrder("fifo")
	require.NoError(t, err)
	assert.Equal(t, OrderFIFO, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}

package querylog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsInOrder(t *testing.T) {
	c := New()
	c.Record("SELECT id\n\t FROM wallets\n WHERE id = $1", []any{"w1"}, 2*time.Millisecond, nil)
	c.Record("UPDATE wallets SET balance = $1", nil, time.Millisecond, errors.New("boom"))

	entries := c.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Seq)
	assert.Equal(t, "select", entries[0].Kind)
	assert.Equal(t, "SELECT id FROM wallets WHERE id = $1", entries[0].Query)
	assert.Equal(t, []any{"w1"}, entries[0].Args)

	assert.Equal(t, 2, entries[1].Seq)
	assert.Equal(t, "update", entries[1].Kind)
	assert.Equal(t, "boom", entries[1].Err)

	assert.Equal(t, 3*time.Millisecond, c.Total())
}

func TestContext_NoCollectorIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	// Must not panic.
	Record(ctx, "SELECT 1", nil, 0, nil)
}

func TestContext_ScopedPerRequest(t *testing.T) {
	a, b := New(), New()
	ctxA := WithCollector(context.Background(), a)
	ctxB := WithCollector(context.Background(), b)

	Record(ctxA, "SELECT 1", nil, 0, nil)
	Record(ctxA, "SELECT 2", nil, 0, nil)
	Record(ctxB, "SELECT 3", nil, 0, nil)

	assert.Len(t, a.Entries(), 2)
	assert.Len(t, b.Entries(), 1)
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("INSERT INTO transactions", nil, 0, nil)
		}()
	}
	wg.Wait()

	entries := c.Entries()
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Seq)
	}
}

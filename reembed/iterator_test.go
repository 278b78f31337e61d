package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIteratorBatches(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		batchSize int
		want      []int
	}{
		{"partial last batch", 7, 3, []int{3, 3, 1}},
		{"exact multiple", 6, 3, []int{3, 3}},
		{"single batch", 2, 10, []int{2}},
		{"default batch size", 5, 0, []int{5}},
		{"empty partition", 0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			if tt.records > 0 {
				seed(t, store, "org-a", "Survey", tt.records)
			}
			seed(t, store, "org-b", "Foreign", 4)

			var sizes []int
			var seen []core.ID
			it := NewRecordIterator(store, "org-a", v1Chunks, tt.batchSize)
			err := it.ForEach(context.Background(), 0, func(batch []*core.Record) error {
				sizes = append(sizes, len(batch))
				for _, r := range batch {
					assert.Equal(t, core.TenantID("org-a"), r.Tenant)
					seen = append(seen, r.Id)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
			assert.Equal(t, partitionIDs(t, store, "org-a", v1Chunks), seen)
		})
	}
}

func TestRecordIteratorAfter(t *testing.T) {
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 6)
	ids := partitionIDs(t, store, "org-a", v1Chunks)
	require.Len(t, ids, 6)

	var seen []core.ID
	err := NewRecordIterator(store, "org-a", v1Chunks, 2).ForEach(context.Background(), ids[2], func(batch []*core.Record) error {
		for _, r := range batch {
			seen = append(seen, r.Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, ids[3:], seen)
}

func TestRecordIteratorStopsOnError(t *testing.T) {
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 6)

	stop := errors.New("stop")
	calls := 0
	err := NewRecordIterator(store, "org-a", v1Chunks, 2).ForEach(context.Background(), 0, func([]*core.Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestRecordIteratorCancelled(t *testing.T) {
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRecordIterator(store, "org-a", v1Chunks, 2).ForEach(ctx, 0, func([]*core.Record) error {
		t.Fatal("no batch expected")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

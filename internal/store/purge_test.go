package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
)

// memCollection is an in-memory PurgeableCollection. NextBatch returns IDs in
// lexical order, mimicking Firestore's document-identity ordering.
type memCollection struct {
	docs        map[string]struct{}
	deleteCalls int
	failOn      int // fail the Nth delete call (1-based), 0 = never
}

func newMemCollection(n int) *memCollection {
	c := &memCollection{docs: make(map[string]struct{})}
	for i := 0; i < n; i++ {
		c.docs[fmt.Sprintf("doc-%06d", i)] = struct{}{}
	}
	return c
}

func (c *memCollection) NextBatch(ctx context.Context, limit int) ([]string, error) {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (c *memCollection) DeleteBatch(ctx context.Context, ids []string) error {
	c.deleteCalls++
	if c.failOn != 0 && c.deleteCalls == c.failOn {
		return errors.New("simulated batch failure")
	}
	for _, id := range ids {
		delete(c.docs, id)
	}
	return nil
}

func TestPurgeEmptiesCollection(t *testing.T) {
	cases := []struct {
		n, batchSize, wantBatches int
	}{
		{0, 100, 0},
		{1, 1, 1},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{250, 100, 3}, // 100, 100, 50
		{250, 1, 250},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("n=%d_b=%d", tc.n, tc.batchSize), func(t *testing.T) {
			col := newMemCollection(tc.n)

			batches, err := Purge(context.Background(), col, tc.batchSize)
			if err != nil {
				t.Fatalf("Purge returned error: %v", err)
			}
			if batches != tc.wantBatches {
				t.Errorf("batches = %d, want %d", batches, tc.wantBatches)
			}
			if len(col.docs) != 0 {
				t.Errorf("%d documents left after purge, want 0", len(col.docs))
			}
			// One terminating empty read means delete was called exactly
			// once per committed batch.
			if col.deleteCalls != tc.wantBatches {
				t.Errorf("delete calls = %d, want %d", col.deleteCalls, tc.wantBatches)
			}
		})
	}
}

func TestPurgeInvalidBatchSize(t *testing.T) {
	if _, err := Purge(context.Background(), newMemCollection(5), 0); err == nil {
		t.Fatal("expected error for batch size 0")
	}
}

func TestPurgeAbortsOnBatchFailure(t *testing.T) {
	col := newMemCollection(250)
	col.failOn = 2

	batches, err := Purge(context.Background(), col, 100)
	if err == nil {
		t.Fatal("expected error from failing batch")
	}
	if batches != 1 {
		t.Errorf("batches = %d, want 1 committed before failure", batches)
	}
	if len(col.docs) != 150 {
		t.Errorf("%d documents left, want 150", len(col.docs))
	}

	// A retry restarts from scratch and drains the remainder.
	col.failOn = 0
	batches, err = Purge(context.Background(), col, 100)
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if batches != 2 {
		t.Errorf("retry batches = %d, want 2", batches)
	}
	if len(col.docs) != 0 {
		t.Errorf("%d documents left after retry, want 0", len(col.docs))
	}
}

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_GetUnknownReturnsEmpty(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	sess, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if sess == nil || len(sess) != 0 {
		t.Fatalf("expected empty session, got %v", sess)
	}
}

func TestMemoryStore_MergeOverwritesAndSnapshots(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if err := s.Merge(ctx, "c1", map[string]string{"mainMenu": "1"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := s.Merge(ctx, "c1", map[string]string{"mainMenu": "3", "numChildren": "2"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	sess, _ := s.Get(ctx, "c1")
	if sess["mainMenu"] != "3" || sess["numChildren"] != "2" {
		t.Fatalf("unexpected session: %v", sess)
	}

	// Mutating the snapshot must not leak into the store.
	sess["mainMenu"] = "9"
	again, _ := s.Get(ctx, "c1")
	if again["mainMenu"] != "3" {
		t.Fatalf("snapshot mutation leaked into store: %v", again)
	}
}

func TestMemoryStore_ReplayedMergeIsNoop(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	fields := map[string]string{"spouse1_workplaces": "2"}
	_ = s.Merge(ctx, "c1", fields)
	once, _ := s.Get(ctx, "c1")
	_ = s.Merge(ctx, "c1", fields)
	twice, _ := s.Get(ctx, "c1")

	if len(once) != len(twice) || twice["spouse1_workplaces"] != "2" {
		t.Fatalf("replay changed state: %v vs %v", once, twice)
	}
}

func TestMemoryStore_TTLEviction(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Unix(1700000000, 0)
	s.clock = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Merge(ctx, "old", map[string]string{"a": "1"})

	now = now.Add(2 * time.Minute)
	sess, _ := s.Get(ctx, "old")
	if len(sess) != 0 {
		t.Fatalf("expected expired session to read empty, got %v", sess)
	}

	// A write to the same shard sweeps the stale entry out.
	_ = s.Merge(ctx, "old", map[string]string{"b": "2"})
	sess, _ = s.Get(ctx, "old")
	if len(sess) != 1 || sess["b"] != "2" {
		t.Fatalf("expected fresh session after expiry, got %v", sess)
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("expected 1 live entry, got %d", got)
	}
}

func TestMemoryStore_ConcurrentCallsDoNotInterfere(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("call-%d", i)
			for j := 0; j < 50; j++ {
				_ = s.Merge(ctx, id, map[string]string{"seq": fmt.Sprintf("%d", j), "id": id})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		id := fmt.Sprintf("call-%d", i)
		sess, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if sess["id"] != id || sess["seq"] != "49" {
			t.Fatalf("cross-call interference for %s: %v", id, sess)
		}
	}
}

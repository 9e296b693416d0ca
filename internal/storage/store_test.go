package storage_test

import (
	"context"
	"testing"

	"OutcomeLedger/internal/storage"
)

// ============================================================================
// Test: EntityStore contract (in-memory implementation)
// ============================================================================

func TestMemoryStore_PutGetOverwrite(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	err := store.Put(ctx, []storage.Record{
		{Kind: storage.KindCondition, Key: "c1", Value: []byte("v1")},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	value, ok, err := store.Get(ctx, storage.KindCondition, "c1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(value) != "v1" {
		t.Errorf("got %q, want %q", value, "v1")
	}

	// Upsert replaces
	store.Put(ctx, []storage.Record{{Kind: storage.KindCondition, Key: "c1", Value: []byte("v2")}})
	value, _, _ = store.Get(ctx, storage.KindCondition, "c1")
	if string(value) != "v2" {
		t.Errorf("got %q, want %q", value, "v2")
	}
}

func TestMemoryStore_GetUnknownKey(t *testing.T) {
	store := storage.NewMemoryStore()
	_, ok, err := store.Get(context.Background(), storage.KindPosition, "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Error("unknown key reported as present")
	}
}

func TestMemoryStore_ScanVisitsOnlyKind(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	store.Put(ctx, []storage.Record{
		{Kind: storage.KindCondition, Key: "c1", Value: []byte("a")},
		{Kind: storage.KindCondition, Key: "c2", Value: []byte("b")},
		{Kind: storage.KindPosition, Key: "p1", Value: []byte("c")},
	})

	seen := map[string]string{}
	err := store.Scan(ctx, storage.KindCondition, func(key string, value []byte) error {
		seen[key] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen["c1"] != "a" || seen["c2"] != "b" {
		t.Errorf("scan results: got %v", seen)
	}
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	original := []byte("original")
	store.Put(ctx, []storage.Record{{Kind: storage.KindStats, Key: storage.StatsKey, Value: original}})
	original[0] = 'X'

	value, _, _ := store.Get(ctx, storage.KindStats, storage.StatsKey)
	if string(value) != "original" {
		t.Errorf("stored value aliased the caller's buffer: got %q", value)
	}
	value[0] = 'Y'

	again, _, _ := store.Get(ctx, storage.KindStats, storage.StatsKey)
	if string(again) != "original" {
		t.Errorf("returned value aliased the stored buffer: got %q", again)
	}
}

package ttscache

import (
	"fmt"
	"testing"
	"time"
)

func terminalEntry(size int64, createdAt time.Time) *Entry {
	op := newOperation()
	op.settle(&Artifact{}, nil)
	return &Entry{
		Status:    StatusCompleted,
		Artifact:  &Artifact{},
		SizeBytes: size,
		CreatedAt: createdAt,
		op:        op,
	}
}

func pendingEntry(createdAt time.Time) *Entry {
	e := newPendingEntry(newOperation())
	e.CreatedAt = createdAt
	return e
}

func TestArtifactCache_PutAndLookup(t *testing.T) {
	cache := NewArtifactCache(1024, 10)
	fp := Fingerprint("fp-1")

	if _, ok := cache.Lookup(fp); ok {
		t.Fatal("Lookup returned entry for empty cache")
	}

	entry := terminalEntry(100, time.Now())
	evicted := cache.Put(fp, entry)
	if len(evicted) != 0 {
		t.Fatalf("unexpected eviction on first put: %v", evicted)
	}

	got, ok := cache.Lookup(fp)
	if !ok {
		t.Fatal("Lookup failed after put")
	}
	if got.Status != StatusCompleted {
		t.Errorf("status mismatch: got %v, want %v", got.Status, StatusCompleted)
	}

	stats := cache.Stats()
	if stats.EntryCount != 1 {
		t.Errorf("entry count mismatch: got %d, want 1", stats.EntryCount)
	}
	if stats.CurrentSize != 100 {
		t.Errorf("size mismatch: got %d, want 100", stats.CurrentSize)
	}
}

func TestArtifactCache_ReplaceDoesNotDoubleCount(t *testing.T) {
	cache := NewArtifactCache(10240, 10)
	fp := Fingerprint("fp-1")

	cache.Put(fp, terminalEntry(100, time.Now()))
	cache.Put(fp, terminalEntry(250, time.Now()))

	stats := cache.Stats()
	if stats.EntryCount != 1 {
		t.Errorf("entry count mismatch after replace: got %d, want 1", stats.EntryCount)
	}
	if stats.CurrentSize != 250 {
		t.Errorf("size mismatch after replace: got %d, want 250", stats.CurrentSize)
	}
}

func TestArtifactCache_AggregateSizeMatchesSum(t *testing.T) {
	cache := NewArtifactCache(1<<20, 100)
	base := time.Now()

	var want int64
	for i := 0; i < 10; i++ {
		size := int64(10 * (i + 1))
		want += size
		cache.Put(Fingerprint(fmt.Sprintf("fp-%d", i)), terminalEntry(size, base.Add(time.Duration(i)*time.Millisecond)))
	}

	if got := cache.Stats().CurrentSize; got != want {
		t.Errorf("aggregate size mismatch: got %d, want %d", got, want)
	}
}

func TestArtifactCache_EvictsOldestByCountLimit(t *testing.T) {
	cache := NewArtifactCache(1<<20, 3)
	base := time.Now()

	for i := 0; i < 3; i++ {
		cache.Put(Fingerprint(fmt.Sprintf("fp-%d", i)), terminalEntry(10, base.Add(time.Duration(i)*time.Millisecond)))
	}
	if got := cache.Stats().EntryCount; got != 3 {
		t.Fatalf("entry count before overflow: got %d, want 3", got)
	}

	evicted := cache.Put(Fingerprint("fp-3"), terminalEntry(10, base.Add(3*time.Millisecond)))
	if len(evicted) != 1 || evicted[0] != Fingerprint("fp-0") {
		t.Fatalf("expected fp-0 evicted, got %v", evicted)
	}

	if _, ok := cache.Lookup(Fingerprint("fp-0")); ok {
		t.Error("fp-0 should have been evicted")
	}
	if _, ok := cache.Lookup(Fingerprint("fp-3")); !ok {
		t.Error("fp-3 should be present")
	}

	stats := cache.Stats()
	if stats.EntryCount != 3 {
		t.Errorf("entry count after eviction: got %d, want 3", stats.EntryCount)
	}
	if stats.Evictions != 1 {
		t.Errorf("eviction counter: got %d, want 1", stats.Evictions)
	}
}

func TestArtifactCache_EvictsBySizeLimit(t *testing.T) {
	cache := NewArtifactCache(100, 100)
	base := time.Now()

	cache.Put(Fingerprint("fp-0"), terminalEntry(60, base))
	cache.Put(Fingerprint("fp-1"), terminalEntry(40, base.Add(time.Millisecond)))

	// Third entry pushes the aggregate past the limit; the two oldest go.
	evicted := cache.Put(Fingerprint("fp-2"), terminalEntry(90, base.Add(2*time.Millisecond)))
	if len(evicted) != 2 {
		t.Fatalf("expected 2 evictions, got %v", evicted)
	}

	stats := cache.Stats()
	if stats.CurrentSize != 90 {
		t.Errorf("size after eviction: got %d, want 90", stats.CurrentSize)
	}
	if stats.EntryCount != 1 {
		t.Errorf("entry count after eviction: got %d, want 1", stats.EntryCount)
	}
}

func TestArtifactCache_NeverEvictsPending(t *testing.T) {
	cache := NewArtifactCache(1<<20, 2)
	base := time.Now()

	// Oldest entry is pending; it must be skipped in favor of the next oldest.
	cache.Put(Fingerprint("fp-pending"), pendingEntry(base))
	cache.Put(Fingerprint("fp-done"), terminalEntry(10, base.Add(time.Millisecond)))

	evicted := cache.Put(Fingerprint("fp-new"), terminalEntry(10, base.Add(2*time.Millisecond)))
	if len(evicted) != 1 || evicted[0] != Fingerprint("fp-done") {
		t.Fatalf("expected fp-done evicted, got %v", evicted)
	}
	if !cache.IsPending(Fingerprint("fp-pending")) {
		t.Error("pending entry should never be evicted")
	}
}

func TestArtifactCache_AllPendingMayExceedBounds(t *testing.T) {
	cache := NewArtifactCache(1<<20, 2)
	base := time.Now()

	for i := 0; i < 4; i++ {
		evicted := cache.Put(Fingerprint(fmt.Sprintf("fp-%d", i)), pendingEntry(base.Add(time.Duration(i)*time.Millisecond)))
		if len(evicted) != 0 {
			t.Fatalf("pending entries must not be evicted, got %v", evicted)
		}
	}

	if got := cache.Stats().EntryCount; got != 4 {
		t.Errorf("cache should hold all pending entries: got %d, want 4", got)
	}
}

func TestArtifactCache_StatusProbes(t *testing.T) {
	cache := NewArtifactCache(1024, 10)
	fp := Fingerprint("fp-1")

	if cache.IsCompleted(fp) || cache.IsPending(fp) {
		t.Fatal("probes should be false for absent entry")
	}

	cache.Put(fp, pendingEntry(time.Now()))
	if !cache.IsPending(fp) {
		t.Error("IsPending should be true for pending entry")
	}
	if cache.IsCompleted(fp) {
		t.Error("IsCompleted should be false for pending entry")
	}

	cache.Put(fp, terminalEntry(10, time.Now()))
	if !cache.IsCompleted(fp) {
		t.Error("IsCompleted should be true for completed entry")
	}
	if cache.IsPending(fp) {
		t.Error("IsPending should be false for completed entry")
	}

	failed := newFailedEntry(newOperation())
	cache.Put(fp, failed)
	if cache.IsCompleted(fp) || cache.IsPending(fp) {
		t.Error("failed entry should report neither completed nor pending")
	}
}

func TestArtifactCache_Clear(t *testing.T) {
	cache := NewArtifactCache(1024, 10)
	cache.Put(Fingerprint("fp-1"), terminalEntry(100, time.Now()))
	cache.Put(Fingerprint("fp-2"), terminalEntry(200, time.Now()))

	cache.Clear()

	stats := cache.Stats()
	if stats.EntryCount != 0 {
		t.Errorf("entry count after clear: got %d, want 0", stats.EntryCount)
	}
	if stats.CurrentSize != 0 {
		t.Errorf("size after clear: got %d, want 0", stats.CurrentSize)
	}
}

func TestEstimateArtifactSize(t *testing.T) {
	if got := estimateArtifactSize(nil, 4096); got != 4096 {
		t.Errorf("nil artifact should use fallback: got %d, want 4096", got)
	}

	artifact := &Artifact{
		Audio: make([]byte, 1000),
		Text:  "hello world",
	}
	got := estimateArtifactSize(artifact, 4096)
	if got <= 1000 {
		t.Errorf("measured size should cover payload plus metadata: got %d", got)
	}
}

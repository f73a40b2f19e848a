package persist

import (
	"testing"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
)

func testEntry(w, h uint16, fill byte, quality cachecore.QualityCode) *cachecore.Entry {
	pixels := make([]byte, int(w)*int(h)*4)
	for i := range pixels {
		if i%4 != 3 {
			pixels[i] = fill
		}
	}
	return &cachecore.Entry{
		Pixels:        pixels,
		Format:        pixfmt.Canonical(),
		Width:         w,
		Height:        h,
		StridePixels:  w,
		CanonicalHash: 1,
		ActualHash:    1,
		Quality:       quality,
	}
}

func TestInsertAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Config{Directory: dir, MemoryCapacityBytes: 1 << 20, DiskCapacityBytes: 1 << 22, ShardTargetBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var hash [16]byte
	hash[0] = 0xAA
	entry := testEntry(8, 8, 0x11, cachecore.QualityLossless24Or32)
	if err := s.Insert(hash, entry, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, ok := s.Lookup(hash, 8, 8)
	if !ok {
		t.Fatalf("expected lookup hit after insert")
	}
	if len(got.Pixels) != len(entry.Pixels) {
		t.Fatalf("expected %d pixel bytes, got %d", len(entry.Pixels), len(got.Pixels))
	}
}

// TestLoadPersistsAcrossReopen is round-trip law L2: save, restart, load,
// get returns a byte-identical entry after hydration.
func TestLoadPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Directory: dir, MemoryCapacityBytes: 1 << 20, DiskCapacityBytes: 1 << 22, ShardTargetBytes: 1 << 20}

	s1, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var hash [16]byte
	hash[0] = 0x42
	entry := testEntry(16, 16, 0x99, cachecore.QualityLossless24Or32)
	if err := s1.Insert(hash, entry, true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	got, ok := s2.Lookup(hash, 16, 16)
	if !ok {
		t.Fatalf("expected hit after reopen (lazy hydration)")
	}
	if len(got.Pixels) != len(entry.Pixels) {
		t.Fatalf("hydrated entry has %d bytes, want %d", len(got.Pixels), len(entry.Pixels))
	}
	for i := range got.Pixels {
		if got.Pixels[i] != entry.Pixels[i] {
			t.Fatalf("hydrated entry diverges from original at byte %d", i)
		}
	}
}

func TestDimensionMismatchMisses(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var hash [16]byte
	hash[0] = 1
	if err := s.Insert(hash, testEntry(8, 8, 1, cachecore.QualityLossless24Or32), true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := s.Lookup(hash, 9, 8); ok {
		t.Fatalf("lookup with mismatched dimensions must miss (spec I1)")
	}
}

func TestQualityDowngradeIgnored(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var hash [16]byte
	hash[0] = 2
	lossless := testEntry(8, 8, 5, cachecore.QualityLossless24Or32)
	if err := s.Insert(hash, lossless, true); err != nil {
		t.Fatalf("Insert lossless: %v", err)
	}
	lossy := testEntry(8, 8, 9, cachecore.QualityLossy8)
	if err := s.Insert(hash, lossy, true); err != nil {
		t.Fatalf("Insert lossy: %v", err)
	}

	got, ok := s.Lookup(hash, 8, 8)
	if !ok {
		t.Fatalf("expected hit")
	}
	if got.Quality != cachecore.QualityLossless24Or32 {
		t.Fatalf("quality downgrade should have been ignored, got %v", got.Quality)
	}
}

func TestCleanupOrphanShardsRemovesUnreferenced(t *testing.T) {
	dir := t.TempDir()
	if _, err := appendShard(dir, 999, []byte{1, 2, 3}); err != nil {
		t.Fatalf("appendShard: %v", err)
	}
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ids, err := listShardFiles(dir)
	if err != nil {
		t.Fatalf("listShardFiles: %v", err)
	}
	for _, id := range ids {
		if id == 999 {
			t.Fatalf("orphan shard 999 should have been removed on open")
		}
	}
}

func TestVerifyReportsNoProblemsOnHealthyStore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(DefaultConfig(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var hash [16]byte
	hash[0] = 3
	if err := s.Insert(hash, testEntry(4, 4, 1, cachecore.QualityLossless24Or32), true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if problems := s.Verify(); len(problems) != 0 {
		t.Fatalf("expected no problems on a healthy store, got %v", problems)
	}
}

func TestMemoryEvictionQueuesPendingNotification(t *testing.T) {
	dir := t.TempDir()
	// Capacity for exactly one small entry.
	s, err := Open(Config{Directory: dir, MemoryCapacityBytes: 4 * 4 * 4, DiskCapacityBytes: 1 << 30, ShardTargetBytes: 1 << 20})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	var h1, h2 [16]byte
	h1[0], h2[0] = 1, 2
	if err := s.Insert(h1, testEntry(4, 4, 1, cachecore.QualityLossless24Or32), true); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(h2, testEntry(4, 4, 2, cachecore.QualityLossless24Or32), true); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	evicted := s.TakePendingEvictions()
	if len(evicted) != 1 || evicted[0] != h1 {
		t.Fatalf("expected h1 to be memory-evicted, got %v", evicted)
	}

	// Cold entry is still retrievable from disk.
	if _, ok := s.Lookup(h1, 4, 4); !ok {
		t.Fatalf("expected cold entry still retrievable from disk")
	}
}

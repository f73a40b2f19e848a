// Package persist implements PersistentStore (spec §4.5): the viewer-side
// disk-backed tier of sharded append-only payload files plus an index,
// with lazy hydration and orphan-shard cleanup.
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shirou/gopsutil/v4/disk"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
)

// Config configures a Store.
type Config struct {
	Directory           string
	MemoryCapacityBytes int64
	DiskCapacityBytes   int64
	ShardTargetBytes    int64
}

// DefaultConfig returns the spec's documented defaults (§6.2): disk
// capacity defaults to twice memory capacity, shard target 64 MiB.
func DefaultConfig(directory string) Config {
	mem := int64(2048) * 1024 * 1024
	return Config{
		Directory:           directory,
		MemoryCapacityBytes: mem,
		DiskCapacityBytes:   2 * mem,
		ShardTargetBytes:    64 * 1024 * 1024,
	}
}

// Store is the disk-backed persistent cache tier.
//
// The in-memory ARC, index map, dirty set, and pending-evictions queue are
// all protected by mu, held only around table mutations, never across disk
// or network I/O (spec §5).
type Store struct {
	cfg Config

	mu              sync.Mutex
	memory          *cachecore.ArcCache[cachecore.Key[[16]byte], *cachecore.Entry]
	index           map[[16]byte]IndexEntry
	shardSizes      map[uint32]int64
	currentShardID  uint32
	dirty           map[[16]byte]bool
	pendingEvicted  [][16]byte
}

// Open creates or reopens a Store rooted at cfg.Directory: loads the
// index, then removes any shard files the index does not reference
// (spec §4.5 loadIndex, cleanupOrphanShards).
func Open(cfg Config) (*Store, error) {
	if cfg.MemoryCapacityBytes <= 0 {
		cfg.MemoryCapacityBytes = DefaultConfig(cfg.Directory).MemoryCapacityBytes
	}
	if cfg.DiskCapacityBytes <= 0 {
		cfg.DiskCapacityBytes = 2 * cfg.MemoryCapacityBytes
	}
	if cfg.ShardTargetBytes <= 0 {
		cfg.ShardTargetBytes = 64 * 1024 * 1024
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create directory %s: %w", cfg.Directory, err)
	}

	s := &Store{
		cfg:        cfg,
		index:      make(map[[16]byte]IndexEntry),
		shardSizes: make(map[uint32]int64),
		dirty:      make(map[[16]byte]bool),
	}
	s.memory = cachecore.New[cachecore.Key[[16]byte], *cachecore.Entry](cfg.MemoryCapacityBytes, s.onMemoryEvict)

	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	if err := s.cleanupOrphanShards(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) onMemoryEvict(key cachecore.Key[[16]byte], entry *cachecore.Entry) {
	// The entry becomes "cold": still present on disk via the index, just
	// no longer hot in memory. The viewer must still notify the server
	// via pendingEvicted so it stops referencing it.
	s.pendingEvicted = append(s.pendingEvicted, key.Hash)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.cfg.Directory, "index.dat")
}

// loadIndex parses index.dat, rebuilding the in-memory index map (spec
// §4.5). It does not load payloads; entries start cold.
func (s *Store) loadIndex() error {
	entries, err := readIndex(s.indexPath())
	if err != nil {
		return fmt.Errorf("persist: load index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.index[e.Hash] = e
		if e.ShardID > s.currentShardID {
			s.currentShardID = e.ShardID
		}
		size, err := shardSize(s.cfg.Directory, e.ShardID)
		if err == nil {
			s.shardSizes[e.ShardID] = size
		}
	}
	return nil
}

// saveIndex persists the in-memory index to disk atomically.
func (s *Store) saveIndex() error {
	s.mu.Lock()
	entries := make([]IndexEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	path := s.indexPath()
	s.mu.Unlock()
	return writeIndex(path, entries)
}

// Lookup returns the entry for hash if it matches the given dimensions,
// first checking the hot in-memory tier, then hydrating from disk on a
// cold hit.
func (s *Store) Lookup(hash [16]byte, width, height uint16) (*cachecore.Entry, bool) {
	key := cachecore.Key[[16]byte]{Width: width, Height: height, Hash: hash}

	s.mu.Lock()
	if entry, ok := s.memory.Get(key); ok {
		s.mu.Unlock()
		return entry, true
	}
	idxEntry, ok := s.index[hash]
	s.mu.Unlock()
	if !ok || idxEntry.Width != width || idxEntry.Height != height {
		return nil, false
	}

	entry, err := s.hydrate(idxEntry)
	if err != nil {
		s.mu.Lock()
		delete(s.index, hash)
		s.pendingEvicted = append(s.pendingEvicted, hash)
		s.mu.Unlock()
		return nil, false
	}

	s.mu.Lock()
	s.memory.Insert(key, entry, entry.SizeBytes())
	s.mu.Unlock()
	return entry, true
}

// hydrate reads the payload bytes for an index entry from its shard,
// validating the byte length against the stored size (spec §4.5 hydrate).
func (s *Store) hydrate(idxEntry IndexEntry) (*cachecore.Entry, error) {
	payload, err := readShardRange(s.cfg.Directory, idxEntry.ShardID, idxEntry.PayloadOffset, idxEntry.PayloadSize)
	if err != nil {
		return nil, fmt.Errorf("persist: hydrate %x: %w", idxEntry.Hash, err)
	}
	return &cachecore.Entry{
		Pixels:        payload,
		Format:        pixfmt.Canonical(),
		Width:         idxEntry.Width,
		Height:        idxEntry.Height,
		StridePixels:  idxEntry.StridePixels,
		CanonicalHash: idxEntry.CanonicalHash,
		ActualHash:    idxEntry.ActualHash,
		Quality:       idxEntry.Quality,
	}, nil
}

// HydrateBatch prefetches up to n cold entries into the memory tier on a
// background schedule (spec §4.5 hydrateBatch). Entries are chosen in
// index iteration order; this is a best-effort prefetch, not a strict
// recency-ordered one, since disk order does not capture session recency.
func (s *Store) HydrateBatch(n int) (hydrated int, err error) {
	s.mu.Lock()
	var candidates []IndexEntry
	for hash, idxEntry := range s.index {
		if len(candidates) >= n {
			break
		}
		key := cachecore.Key[[16]byte]{Width: idxEntry.Width, Height: idxEntry.Height, Hash: hash}
		if !s.memory.Contains(key) {
			candidates = append(candidates, idxEntry)
		}
	}
	s.mu.Unlock()

	for _, idxEntry := range candidates {
		entry, err := s.hydrate(idxEntry)
		if err != nil {
			continue
		}
		key := cachecore.Key[[16]byte]{Width: idxEntry.Width, Height: idxEntry.Height, Hash: idxEntry.Hash}
		s.mu.Lock()
		s.memory.Insert(key, entry, entry.SizeBytes())
		s.mu.Unlock()
		hydrated++
	}
	return hydrated, nil
}

// Insert appends entry's payload to the current shard (rotating if the
// shard-size threshold is crossed), updates the in-memory index, and marks
// it dirty for the next FlushDirty (spec §4.5 insert).
//
// Quality upgrades: if hash already exists with a lower quality than
// entry.Quality, it is replaced. Downgrades are ignored (spec §4.5).
func (s *Store) Insert(hash [16]byte, entry *cachecore.Entry, isPersistable bool) error {
	_, err := s.insertEntry(hash, entry, isPersistable)
	return err
}

// InsertFromPeer behaves like Insert but also returns the allocated index
// record, for the coordinator's master role to relay back to the
// requesting slave as a WRITE_ACK (spec §4.6).
func (s *Store) InsertFromPeer(hash [16]byte, entry *cachecore.Entry, isPersistable bool) (IndexEntry, error) {
	return s.insertEntry(hash, entry, isPersistable)
}

func (s *Store) insertEntry(hash [16]byte, entry *cachecore.Entry, isPersistable bool) (IndexEntry, error) {
	s.mu.Lock()
	if existing, ok := s.index[hash]; ok && existing.Quality >= entry.Quality {
		s.mu.Unlock()
		return existing, nil
	}
	shardID := s.currentShardID
	if s.shardSizes[shardID]+int64(len(entry.Pixels)) > s.cfg.ShardTargetBytes && s.shardSizes[shardID] > 0 {
		shardID++
	}
	s.mu.Unlock()

	if !isPersistable {
		return IndexEntry{}, nil
	}

	offset, err := appendShard(s.cfg.Directory, shardID, entry.Pixels)
	if err != nil {
		return IndexEntry{}, err
	}

	idxEntry := IndexEntry{
		Hash:          hash,
		ShardID:       shardID,
		PayloadOffset: offset,
		PayloadSize:   uint32(len(entry.Pixels)),
		Width:         entry.Width,
		Height:        entry.Height,
		StridePixels:  entry.StridePixels,
		CanonicalHash: entry.CanonicalHash,
		ActualHash:    entry.ActualHash,
		Quality:       entry.Quality,
	}

	s.mu.Lock()
	s.currentShardID = shardID
	s.shardSizes[shardID] += int64(len(entry.Pixels))
	s.index[hash] = idxEntry
	s.dirty[hash] = true
	key := cachecore.Key[[16]byte]{Width: entry.Width, Height: entry.Height, Hash: hash}
	s.memory.Insert(key, entry, entry.SizeBytes())
	s.mu.Unlock()

	return idxEntry, nil
}

// CurrentShardID returns the shard id currently being appended to.
func (s *Store) CurrentShardID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentShardID
}

// FlushDirty writes the index file for entries appended since the last
// flush. Payload bytes are already durable (append is synchronous and
// fsynced); only the smaller index file needs a flush (spec §4.5).
func (s *Store) FlushDirty() error {
	s.mu.Lock()
	hadDirty := len(s.dirty) > 0
	s.mu.Unlock()
	if !hadDirty {
		return nil
	}
	if err := s.saveIndex(); err != nil {
		return fmt.Errorf("persist: flush dirty: %w", err)
	}
	s.mu.Lock()
	s.dirty = make(map[[16]byte]bool)
	s.mu.Unlock()
	return nil
}

// GarbageCollect rewrites shards to drop bytes belonging to entries no
// longer referenced by the index (cold-then-evicted content), returning
// the number of bytes reclaimed.
func (s *Store) GarbageCollect() (bytesReclaimed int64, err error) {
	s.mu.Lock()
	shardIDs, statErr := listShardFiles(s.cfg.Directory)
	if statErr != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("persist: garbage collect: list shards: %w", statErr)
	}
	referenced := make(map[uint32][]IndexEntry)
	for _, e := range s.index {
		referenced[e.ShardID] = append(referenced[e.ShardID], e)
	}
	s.mu.Unlock()

	for _, id := range shardIDs {
		before, statErr := shardSize(s.cfg.Directory, id)
		if statErr != nil {
			continue
		}
		liveEntries := referenced[id]
		var liveBytes int64
		for _, e := range liveEntries {
			liveBytes += int64(e.PayloadSize)
		}
		if liveBytes >= before {
			continue // nothing to reclaim in this shard
		}
		if err := s.compactShard(id, liveEntries); err != nil {
			return bytesReclaimed, err
		}
		bytesReclaimed += before - liveBytes
	}
	if bytesReclaimed > 0 {
		if err := s.saveIndex(); err != nil {
			return bytesReclaimed, err
		}
	}
	return bytesReclaimed, nil
}

// compactShard rewrites a single shard file to contain only the payload
// bytes for liveEntries, updating their offsets in the index in place.
func (s *Store) compactShard(id uint32, liveEntries []IndexEntry) error {
	rewritten := make([]IndexEntry, 0, len(liveEntries))
	var offset uint64
	payloads := make([][]byte, 0, len(liveEntries))
	for _, e := range liveEntries {
		payload, err := readShardRange(s.cfg.Directory, id, e.PayloadOffset, e.PayloadSize)
		if err != nil {
			return fmt.Errorf("persist: compact shard %d: %w", id, err)
		}
		e.PayloadOffset = offset
		offset += uint64(len(payload))
		rewritten = append(rewritten, e)
		payloads = append(payloads, payload)
	}

	if err := rewriteShardFile(s.cfg.Directory, id, payloads); err != nil {
		return err
	}

	s.mu.Lock()
	for _, e := range rewritten {
		s.index[e.Hash] = e
	}
	s.shardSizes[id] = int64(offset)
	s.mu.Unlock()
	return nil
}

// cleanupOrphanShards deletes any shard_NNNN.dat file not referenced by at
// least one index entry (spec §4.5 cleanupOrphanShards, invariant I6).
func (s *Store) cleanupOrphanShards() error {
	ids, err := listShardFiles(s.cfg.Directory)
	if err != nil {
		return fmt.Errorf("persist: cleanup orphan shards: %w", err)
	}
	s.mu.Lock()
	referenced := make(map[uint32]bool)
	for _, e := range s.index {
		referenced[e.ShardID] = true
	}
	s.mu.Unlock()

	for _, id := range ids {
		if !referenced[id] {
			if err := removeShardFile(s.cfg.Directory, id); err != nil {
				return fmt.Errorf("persist: remove orphan shard %d: %w", id, err)
			}
		}
	}
	return nil
}

// Verify audits every index entry's (shardId, offset, size) triple against
// what is actually present on disk (spec invariants I5, I6). It is a
// read-only health check, not part of normal startup; callers may invoke
// it from a diagnostics command.
func (s *Store) Verify() []error {
	s.mu.Lock()
	entries := make([]IndexEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var problems []error
	for _, e := range entries {
		size, err := shardSize(s.cfg.Directory, e.ShardID)
		if err != nil {
			problems = append(problems, fmt.Errorf("persist: verify %x: shard %d unreadable: %w", e.Hash, e.ShardID, err))
			continue
		}
		if int64(e.PayloadOffset)+int64(e.PayloadSize) > size {
			problems = append(problems, fmt.Errorf("persist: verify %x: shard %d too short for offset %d size %d (have %d bytes)", e.Hash, e.ShardID, e.PayloadOffset, e.PayloadSize, size))
		}
	}

	ids, err := listShardFiles(s.cfg.Directory)
	if err != nil {
		problems = append(problems, fmt.Errorf("persist: verify: list shards: %w", err))
		return problems
	}
	s.mu.Lock()
	referenced := make(map[uint32]bool)
	for _, e := range s.index {
		referenced[e.ShardID] = true
	}
	s.mu.Unlock()
	for _, id := range ids {
		if !referenced[id] {
			problems = append(problems, fmt.Errorf("persist: verify: shard %d is an orphan (unreferenced by the index)", id))
		}
	}
	return problems
}

// DiskStats reports free and total bytes on the filesystem backing the
// cache directory, using gopsutil so the result is portable across the
// platforms the viewer runs on.
func (s *Store) DiskStats() (free, total uint64, err error) {
	usage, err := disk.Usage(s.cfg.Directory)
	if err != nil {
		return 0, 0, fmt.Errorf("persist: disk stats: %w", err)
	}
	return usage.Free, usage.Total, nil
}

// IndexEntryFor returns the current index record for hash, if any. Used by
// the coordinator master to answer QUERY_INDEX, and by cachemon.
func (s *Store) IndexEntryFor(hash [16]byte) (IndexEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[hash]
	return e, ok
}

// ApplyRemoteIndexEntry records an index entry learned from the
// coordinator (a WELCOME snapshot or an INDEX_UPDATE broadcast) without
// touching any local shard file; used by the slave role, which never
// writes shards directly (spec §4.6 invariant: "slaves never open
// shard_NNNN.dat files for writing").
func (s *Store) ApplyRemoteIndexEntry(e IndexEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[e.Hash] = e
	if e.ShardID > s.currentShardID {
		s.currentShardID = e.ShardID
	}
}

// Snapshot returns every index entry currently known, for the master's
// WELCOME response to a newly connected slave.
func (s *Store) Snapshot() []IndexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]IndexEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	return entries
}

// TakePendingEvictions drains the hashes that became cold (memory-evicted)
// since the last call, for the viewer's eviction-notification channel.
func (s *Store) TakePendingEvictions() [][16]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.pendingEvicted
	s.pendingEvicted = nil
	return drained
}

// Stats returns the in-memory tier's ARC statistics.
func (s *Store) Stats() cachecore.Stats {
	return s.memory.Stats()
}

// Close flushes the index and runs orphan cleanup, matching the viewer
// shutdown sequence of spec §5: flushDirty, saveIndex, cleanupOrphanShards.
func (s *Store) Close() error {
	if err := s.FlushDirty(); err != nil {
		return err
	}
	return s.cleanupOrphanShards()
}

package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

var shardFileRE = regexp.MustCompile(`^shard_(\d{4,})\.dat$`)

func shardPath(dir string, id uint32) string {
	return filepath.Join(dir, fmt.Sprintf("shard_%04d.dat", id))
}

// appendShard opens the shard file for append (creating it if necessary)
// and writes payload, returning the offset the payload was written at.
// Shards are strictly append-only (spec I5): existing bytes are never
// rewritten by this call.
func appendShard(dir string, id uint32, payload []byte) (offset uint64, err error) {
	path := shardPath(dir, id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("persist: open shard %d for append: %w", id, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("persist: stat shard %d: %w", id, err)
	}
	offset = uint64(info.Size())

	if _, err := f.Write(payload); err != nil {
		return 0, fmt.Errorf("persist: write shard %d: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("persist: sync shard %d: %w", id, err)
	}
	return offset, nil
}

// readShardRange reads exactly size bytes at offset from shard id, opened
// read-only. Safe for concurrent readers since shards are append-only.
func readShardRange(dir string, id uint32, offset uint64, size uint32) ([]byte, error) {
	path := shardPath(dir, id)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: open shard %d for read: %w", id, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil {
		return nil, fmt.Errorf("persist: read shard %d at offset %d: %w", id, offset, err)
	}
	if n != int(size) {
		return nil, fmt.Errorf("persist: short read from shard %d: got %d bytes, want %d", id, n, size)
	}
	return buf, nil
}

func shardSize(dir string, id uint32) (int64, error) {
	info, err := os.Stat(shardPath(dir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// rewriteShardFile atomically replaces shard id's contents with the
// concatenation of payloads, in order. Used by garbage collection to drop
// holes left by cold-then-removed entries.
func rewriteShardFile(dir string, id uint32, payloads [][]byte) error {
	path := shardPath(dir, id)
	tmp, err := os.CreateTemp(dir, ".tmp-shard-*")
	if err != nil {
		return fmt.Errorf("persist: rewrite shard %d: %w", id, err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	for _, p := range payloads {
		if _, err := tmp.Write(p); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("persist: rewrite shard %d: %w", id, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persist: rewrite shard %d: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: rewrite shard %d: %w", id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("persist: rewrite shard %d: %w", id, err)
	}
	success = true
	return nil
}

// removeShardFile deletes a shard file outright (orphan cleanup).
func removeShardFile(dir string, id uint32) error {
	err := os.Remove(shardPath(dir, id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// listShardFiles returns the sorted shard ids present on disk.
func listShardFiles(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := shardFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		var id uint32
		if _, err := fmt.Sscanf(m[1], "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

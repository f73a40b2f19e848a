package persist

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
)

var indexMagic = [4]byte{'R', 'F', 'B', 'C'}

const indexVersion uint32 = 1

// indexEntrySize is the fixed on-disk record size for one IndexEntry,
// including reserved padding for future fields (spec §6.3).
const indexEntrySize = 64

// IndexEntry is one row of index.dat (spec §3.5, §6.3): the location and
// identity of one persisted payload.
type IndexEntry struct {
	Hash          [16]byte
	ShardID       uint32
	PayloadOffset uint64
	PayloadSize   uint32
	Width         uint16
	Height        uint16
	StridePixels  uint16
	CanonicalHash uint64
	ActualHash    uint64
	Quality       cachecore.QualityCode
	Flags         uint16
}

// EncodeEntry serializes an IndexEntry to its fixed-size wire form, shared
// between index.dat records and the coordinator's WRITE_ACK/INDEX_UPDATE
// payloads (spec §4.6) so both use one format.
func EncodeEntry(e IndexEntry) []byte { return e.marshal() }

// DecodeEntry parses a fixed-size IndexEntry record produced by EncodeEntry.
func DecodeEntry(buf []byte) (IndexEntry, error) { return unmarshalIndexEntry(buf) }

func (e IndexEntry) marshal() []byte {
	buf := make([]byte, indexEntrySize)
	copy(buf[0:16], e.Hash[:])
	binary.BigEndian.PutUint32(buf[16:20], e.ShardID)
	binary.BigEndian.PutUint64(buf[20:28], e.PayloadOffset)
	binary.BigEndian.PutUint32(buf[28:32], e.PayloadSize)
	binary.BigEndian.PutUint16(buf[32:34], e.Width)
	binary.BigEndian.PutUint16(buf[34:36], e.Height)
	binary.BigEndian.PutUint16(buf[36:38], e.StridePixels)
	binary.BigEndian.PutUint64(buf[38:46], e.CanonicalHash)
	binary.BigEndian.PutUint64(buf[46:54], e.ActualHash)
	buf[54] = byte(e.Quality)
	binary.BigEndian.PutUint16(buf[55:57], e.Flags)
	// buf[57:64] reserved, left zero.
	return buf
}

func unmarshalIndexEntry(buf []byte) (IndexEntry, error) {
	if len(buf) != indexEntrySize {
		return IndexEntry{}, fmt.Errorf("persist: index record is %d bytes, want %d", len(buf), indexEntrySize)
	}
	var e IndexEntry
	copy(e.Hash[:], buf[0:16])
	e.ShardID = binary.BigEndian.Uint32(buf[16:20])
	e.PayloadOffset = binary.BigEndian.Uint64(buf[20:28])
	e.PayloadSize = binary.BigEndian.Uint32(buf[28:32])
	e.Width = binary.BigEndian.Uint16(buf[32:34])
	e.Height = binary.BigEndian.Uint16(buf[34:36])
	e.StridePixels = binary.BigEndian.Uint16(buf[36:38])
	e.CanonicalHash = binary.BigEndian.Uint64(buf[38:46])
	e.ActualHash = binary.BigEndian.Uint64(buf[46:54])
	e.Quality = cachecore.QualityCode(buf[54])
	e.Flags = binary.BigEndian.Uint16(buf[55:57])
	return e, nil
}

// writeIndex serializes entries to path atomically: magic, version, count,
// the entry table, then a trailing 32-byte SHA-256 checksum over everything
// preceding it (spec §6.3).
func writeIndex(path string, entries []IndexEntry) error {
	var body bytes.Buffer
	body.Write(indexMagic[:])
	var versionBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], indexVersion)
	body.Write(versionBuf[:])
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(entries)))
	body.Write(countBuf[:])
	for _, e := range entries {
		body.Write(e.marshal())
	}

	checksum := sha256.Sum256(body.Bytes())
	var full bytes.Buffer
	full.Write(body.Bytes())
	// The spec reserves 32 bytes for the checksum trailer; SHA-256 is
	// exactly 32 bytes so no padding is needed.
	full.Write(checksum[:])

	return atomicWriteFile(path, full.Bytes())
}

// readIndex parses index.dat, validating the magic, version, and trailing
// checksum. A missing file is not an error: it means an empty cache.
func readIndex(path string) ([]IndexEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persist: read index: %w", err)
	}
	if len(data) < 12+32 {
		return nil, fmt.Errorf("persist: index file too short (%d bytes)", len(data))
	}

	body := data[:len(data)-32]
	trailer := data[len(data)-32:]
	want := sha256.Sum256(body)
	if !bytes.Equal(trailer, want[:]) {
		return nil, fmt.Errorf("persist: index checksum mismatch, refusing to load")
	}

	if !bytes.Equal(body[0:4], indexMagic[:]) {
		return nil, fmt.Errorf("persist: index magic mismatch")
	}
	version := binary.BigEndian.Uint32(body[4:8])
	if version != indexVersion {
		return nil, fmt.Errorf("persist: unsupported index version %d", version)
	}
	count := binary.BigEndian.Uint32(body[8:12])

	entries := make([]IndexEntry, 0, count)
	offset := 12
	for i := uint32(0); i < count; i++ {
		end := offset + indexEntrySize
		if end > len(body) {
			return nil, fmt.Errorf("persist: index truncated at record %d", i)
		}
		e, err := unmarshalIndexEntry(body[offset:end])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		offset = end
	}
	return entries, nil
}

// atomicWriteFile writes data to path via a temp file in the same
// directory followed by rename, so a crash mid-write never leaves a
// truncated index.dat in place (spec §9 resource scoping).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-index-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	success = true
	return nil
}


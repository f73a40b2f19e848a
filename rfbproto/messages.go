// Package rfbproto implements the byte-exact wire encodings for the cache
// extension to the RFB framebuffer-update protocol (spec §4.7): the four
// rectangle encodings and the five cache control messages, plus the
// pseudo-encoding identifiers clients use to advertise support.
package rfbproto

import (
	"encoding/binary"
	"fmt"
)

// Rectangle encoding identifiers, carried as the signed 32-bit encoding
// field of a standard RFB rectangle header.
const (
	EncodingCachedRect             int32 = -2100
	EncodingCachedRectInit         int32 = -2101
	EncodingPersistentCachedRect   int32 = -2102
	EncodingPersistentCachedRectInit int32 = -2103
)

// Pseudo-encoding identifiers a client includes in SetEncodings to
// advertise capability (spec §4.7 "Capability negotiation").
const (
	PseudoEncodingContentCache   int32 = -2110
	PseudoEncodingPersistentCache int32 = -2111
)

// Control message type bytes. CacheEviction and PersistentCacheEviction
// reuse the RFB client-to-server message-type numbering space; the others
// are extension-local and only meaningful once both ends have negotiated
// the cache pseudo-encodings.
const (
	MsgTypeCacheEviction           uint8 = 104
	MsgTypePersistentCacheEviction uint8 = 105
	MsgTypePersistentCacheQuery    uint8 = 106
	MsgTypePersistentCacheHashList uint8 = 107
	MsgTypeRequestCachedData       uint8 = 108
)

// Validation bounds (spec §4.7 "Validation"): a peer that exceeds these
// has committed a protocol error and the session must be terminated.
const (
	MaxEvictionCount = 1000
	MaxHashLength    = 64
)

// ProtocolError marks a validation failure that must terminate the
// session, as opposed to an error worth logging and continuing past.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string { return "rfbproto: " + e.Msg }

func protoErrf(format string, args ...any) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// CachedRect is the session-ref rectangle payload: just the 8-byte cache
// id, two big-endian u32 halves (spec §4.7).
type CachedRect struct {
	CacheID uint64
}

func (m CachedRect) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, m.CacheID)
	return buf
}

func DecodeCachedRect(buf []byte) (CachedRect, error) {
	if len(buf) != 8 {
		return CachedRect{}, protoErrf("CachedRect: want 8 bytes, got %d", len(buf))
	}
	return CachedRect{CacheID: binary.BigEndian.Uint64(buf)}, nil
}

// CachedRectInit is the session-init rectangle payload: a new cache id,
// the codec used for the attached payload, and the payload bytes
// themselves (spec §4.7).
type CachedRectInit struct {
	CacheID       uint64
	InnerEncoding int32
	Payload       []byte
}

func (m CachedRectInit) Encode() []byte {
	buf := make([]byte, 12+len(m.Payload))
	binary.BigEndian.PutUint64(buf[0:8], m.CacheID)
	binary.BigEndian.PutUint32(buf[8:12], uint32(m.InnerEncoding))
	copy(buf[12:], m.Payload)
	return buf
}

func DecodeCachedRectInit(buf []byte) (CachedRectInit, error) {
	if len(buf) < 12 {
		return CachedRectInit{}, protoErrf("CachedRectInit: header too short (%d bytes)", len(buf))
	}
	return CachedRectInit{
		CacheID:       binary.BigEndian.Uint64(buf[0:8]),
		InnerEncoding: int32(binary.BigEndian.Uint32(buf[8:12])),
		Payload:       buf[12:],
	}, nil
}

// PersistentCachedRect is the persistent-ref rectangle payload: a
// variable-length canonical hash plus a reserved flags field (spec §4.7).
type PersistentCachedRect struct {
	Hash  []byte
	Flags uint16
}

func (m PersistentCachedRect) Encode() []byte {
	buf := make([]byte, 1+len(m.Hash)+2)
	buf[0] = byte(len(m.Hash))
	copy(buf[1:], m.Hash)
	binary.BigEndian.PutUint16(buf[1+len(m.Hash):], m.Flags)
	return buf
}

func DecodePersistentCachedRect(buf []byte) (PersistentCachedRect, error) {
	if len(buf) < 1 {
		return PersistentCachedRect{}, protoErrf("PersistentCachedRect: empty payload")
	}
	hashLen := int(buf[0])
	if hashLen > MaxHashLength {
		return PersistentCachedRect{}, protoErrf("PersistentCachedRect: hash length %d exceeds max %d", hashLen, MaxHashLength)
	}
	if len(buf) < 1+hashLen+2 {
		return PersistentCachedRect{}, protoErrf("PersistentCachedRect: truncated payload")
	}
	hash := make([]byte, hashLen)
	copy(hash, buf[1:1+hashLen])
	flags := binary.BigEndian.Uint16(buf[1+hashLen : 1+hashLen+2])
	return PersistentCachedRect{Hash: hash, Flags: flags}, nil
}

// PersistentCachedRectInit is the persistent-init rectangle payload: a
// variable-length canonical hash, the inner codec, and a length-prefixed
// payload (spec §4.7).
type PersistentCachedRectInit struct {
	Hash          []byte
	InnerEncoding int32
	Payload       []byte
}

func (m PersistentCachedRectInit) Encode() []byte {
	buf := make([]byte, 1+len(m.Hash)+4+4+len(m.Payload))
	off := 0
	buf[off] = byte(len(m.Hash))
	off++
	off += copy(buf[off:], m.Hash)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(m.InnerEncoding))
	off += 4
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(m.Payload)))
	off += 4
	copy(buf[off:], m.Payload)
	return buf
}

func DecodePersistentCachedRectInit(buf []byte) (PersistentCachedRectInit, error) {
	if len(buf) < 1 {
		return PersistentCachedRectInit{}, protoErrf("PersistentCachedRectInit: empty payload")
	}
	hashLen := int(buf[0])
	if hashLen > MaxHashLength {
		return PersistentCachedRectInit{}, protoErrf("PersistentCachedRectInit: hash length %d exceeds max %d", hashLen, MaxHashLength)
	}
	off := 1
	if len(buf) < off+hashLen+8 {
		return PersistentCachedRectInit{}, protoErrf("PersistentCachedRectInit: truncated header")
	}
	hash := make([]byte, hashLen)
	copy(hash, buf[off:off+hashLen])
	off += hashLen
	innerEncoding := int32(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	payloadLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	if uint32(len(buf)-off) != payloadLen {
		return PersistentCachedRectInit{}, protoErrf("PersistentCachedRectInit: payload length mismatch (header says %d, have %d)", payloadLen, len(buf)-off)
	}
	return PersistentCachedRectInit{Hash: hash, InnerEncoding: innerEncoding, Payload: buf[off:]}, nil
}

// CacheEviction is the viewer->server session-eviction notification
// (spec §4.7): `type=104, pad, pad16, count, count x u64 ids`.
type CacheEviction struct {
	IDs []uint64
}

func (m CacheEviction) Encode() []byte {
	buf := make([]byte, 8+8*len(m.IDs))
	buf[0] = MsgTypeCacheEviction
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(m.IDs)))
	for i, id := range m.IDs {
		binary.BigEndian.PutUint64(buf[8+8*i:16+8*i], id)
	}
	return buf
}

func DecodeCacheEviction(buf []byte) (CacheEviction, error) {
	if len(buf) < 8 {
		return CacheEviction{}, protoErrf("CacheEviction: header too short")
	}
	if buf[0] != MsgTypeCacheEviction {
		return CacheEviction{}, protoErrf("CacheEviction: type byte %d, want %d", buf[0], MsgTypeCacheEviction)
	}
	count := binary.BigEndian.Uint32(buf[4:8])
	if count > MaxEvictionCount {
		return CacheEviction{}, protoErrf("CacheEviction: count %d exceeds max %d", count, MaxEvictionCount)
	}
	if uint32(len(buf)-8) != count*8 {
		return CacheEviction{}, protoErrf("CacheEviction: truncated id table")
	}
	ids := make([]uint64, count)
	for i := range ids {
		ids[i] = binary.BigEndian.Uint64(buf[8+8*i : 16+8*i])
	}
	return CacheEviction{IDs: ids}, nil
}

// PersistentCacheEviction is the viewer->server persistent-eviction
// notification (spec §4.7): `type=105, pad, pad16, count, count x
// (hashLen u8, hashBytes[hashLen])`.
type PersistentCacheEviction struct {
	Hashes [][]byte
}

func (m PersistentCacheEviction) Encode() []byte {
	size := 8
	for _, h := range m.Hashes {
		size += 1 + len(h)
	}
	buf := make([]byte, size)
	buf[0] = MsgTypePersistentCacheEviction
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(m.Hashes)))
	off := 8
	for _, h := range m.Hashes {
		buf[off] = byte(len(h))
		off++
		off += copy(buf[off:], h)
	}
	return buf
}

func DecodePersistentCacheEviction(buf []byte) (PersistentCacheEviction, error) {
	if len(buf) < 8 {
		return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: header too short")
	}
	if buf[0] != MsgTypePersistentCacheEviction {
		return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: type byte %d, want %d", buf[0], MsgTypePersistentCacheEviction)
	}
	count := binary.BigEndian.Uint32(buf[4:8])
	if count > MaxEvictionCount {
		return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: count %d exceeds max %d", count, MaxEvictionCount)
	}
	hashes := make([][]byte, 0, count)
	off := 8
	for i := uint32(0); i < count; i++ {
		if off >= len(buf) {
			return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: truncated at hash %d", i)
		}
		hashLen := int(buf[off])
		off++
		if hashLen > MaxHashLength {
			return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: hash length %d exceeds max %d", hashLen, MaxHashLength)
		}
		if off+hashLen > len(buf) {
			return PersistentCacheEviction{}, protoErrf("PersistentCacheEviction: truncated hash bytes at %d", i)
		}
		h := make([]byte, hashLen)
		copy(h, buf[off:off+hashLen])
		hashes = append(hashes, h)
		off += hashLen
	}
	return PersistentCacheEviction{Hashes: hashes}, nil
}

// PersistentCacheQuery is the viewer->server "do you recognize these
// hashes" message (spec §4.7): `type, count:u16, count x (hashLen u8,
// hashBytes[hashLen])`.
type PersistentCacheQuery struct {
	Hashes [][]byte
}

func (m PersistentCacheQuery) Encode() []byte {
	size := 3
	for _, h := range m.Hashes {
		size += 1 + len(h)
	}
	buf := make([]byte, size)
	buf[0] = MsgTypePersistentCacheQuery
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(m.Hashes)))
	off := 3
	for _, h := range m.Hashes {
		buf[off] = byte(len(h))
		off++
		off += copy(buf[off:], h)
	}
	return buf
}

func DecodePersistentCacheQuery(buf []byte) (PersistentCacheQuery, error) {
	if len(buf) < 3 {
		return PersistentCacheQuery{}, protoErrf("PersistentCacheQuery: header too short")
	}
	if buf[0] != MsgTypePersistentCacheQuery {
		return PersistentCacheQuery{}, protoErrf("PersistentCacheQuery: type byte %d, want %d", buf[0], MsgTypePersistentCacheQuery)
	}
	count := binary.BigEndian.Uint16(buf[1:3])
	hashes := make([][]byte, 0, count)
	off := 3
	for i := uint16(0); i < count; i++ {
		if off >= len(buf) {
			return PersistentCacheQuery{}, protoErrf("PersistentCacheQuery: truncated at hash %d", i)
		}
		hashLen := int(buf[off])
		off++
		if hashLen > MaxHashLength {
			return PersistentCacheQuery{}, protoErrf("PersistentCacheQuery: hash length %d exceeds max %d", hashLen, MaxHashLength)
		}
		if off+hashLen > len(buf) {
			return PersistentCacheQuery{}, protoErrf("PersistentCacheQuery: truncated hash bytes at %d", i)
		}
		h := make([]byte, hashLen)
		copy(h, buf[off:off+hashLen])
		hashes = append(hashes, h)
		off += hashLen
	}
	return PersistentCacheQuery{Hashes: hashes}, nil
}

// PersistentCacheHashList is the viewer's optional chunked inventory used
// to prime the server's knownIds at session start (spec §4.7).
type PersistentCacheHashList struct {
	SequenceID  uint32
	TotalChunks uint16
	ChunkIndex  uint16
	Hashes      [][]byte
}

func (m PersistentCacheHashList) Encode() []byte {
	size := 11
	for _, h := range m.Hashes {
		size += 1 + len(h)
	}
	buf := make([]byte, size)
	buf[0] = MsgTypePersistentCacheHashList
	binary.BigEndian.PutUint32(buf[1:5], m.SequenceID)
	binary.BigEndian.PutUint16(buf[5:7], m.TotalChunks)
	binary.BigEndian.PutUint16(buf[7:9], m.ChunkIndex)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(m.Hashes)))
	off := 11
	for _, h := range m.Hashes {
		buf[off] = byte(len(h))
		off++
		off += copy(buf[off:], h)
	}
	return buf
}

func DecodePersistentCacheHashList(buf []byte) (PersistentCacheHashList, error) {
	if len(buf) < 11 {
		return PersistentCacheHashList{}, protoErrf("PersistentCacheHashList: header too short")
	}
	if buf[0] != MsgTypePersistentCacheHashList {
		return PersistentCacheHashList{}, protoErrf("PersistentCacheHashList: type byte %d, want %d", buf[0], MsgTypePersistentCacheHashList)
	}
	out := PersistentCacheHashList{
		SequenceID:  binary.BigEndian.Uint32(buf[1:5]),
		TotalChunks: binary.BigEndian.Uint16(buf[5:7]),
		ChunkIndex:  binary.BigEndian.Uint16(buf[7:9]),
	}
	count := binary.BigEndian.Uint16(buf[9:11])
	off := 11
	for i := uint16(0); i < count; i++ {
		if off >= len(buf) {
			return PersistentCacheHashList{}, protoErrf("PersistentCacheHashList: truncated at hash %d", i)
		}
		hashLen := int(buf[off])
		off++
		if hashLen > MaxHashLength {
			return PersistentCacheHashList{}, protoErrf("PersistentCacheHashList: hash length %d exceeds max %d", hashLen, MaxHashLength)
		}
		if off+hashLen > len(buf) {
			return PersistentCacheHashList{}, protoErrf("PersistentCacheHashList: truncated hash bytes at %d", i)
		}
		h := make([]byte, hashLen)
		copy(h, buf[off:off+hashLen])
		out.Hashes = append(out.Hashes, h)
		off += hashLen
	}
	return out, nil
}

// RequestCachedData is the viewer's resynchronization signal sent on a
// session-cache miss (spec §4.7, invariant I4): `type, cacheId:u64`.
type RequestCachedData struct {
	CacheID uint64
}

func (m RequestCachedData) Encode() []byte {
	buf := make([]byte, 9)
	buf[0] = MsgTypeRequestCachedData
	binary.BigEndian.PutUint64(buf[1:9], m.CacheID)
	return buf
}

func DecodeRequestCachedData(buf []byte) (RequestCachedData, error) {
	if len(buf) != 9 {
		return RequestCachedData{}, protoErrf("RequestCachedData: want 9 bytes, got %d", len(buf))
	}
	if buf[0] != MsgTypeRequestCachedData {
		return RequestCachedData{}, protoErrf("RequestCachedData: type byte %d, want %d", buf[0], MsgTypeRequestCachedData)
	}
	return RequestCachedData{CacheID: binary.BigEndian.Uint64(buf[1:9])}, nil
}

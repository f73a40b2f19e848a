// Package viewercache implements ViewerCacheEngine (spec §4.4): the
// viewer-side session ARC of decoded pixels plus dispatch into the
// persistent (disk-backed) tier, driven by incoming cache protocol
// messages.
package viewercache

import (
	"fmt"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
	"gitlab.com/tinyland/lab/rfbcache/rhash"
)

// Decoder decodes a codec-specific payload into canonical-format pixel
// bytes. The RFB pixel encoders/decoders themselves are out of scope
// (spec §1); the engine treats them as opaque codecs keyed by their wire
// encoding identifier.
type Decoder interface {
	Decode(payload []byte, rect pixfmt.Rect, format pixfmt.PixelFormat) (pixels []byte, err error)
}

// PersistentWriter is the subset of the persistent store's API the viewer
// engine needs to dispatch a decoded persistent-init for on-disk storage.
// Defined here, on the consumer side, so this package never imports the
// persist package directly.
type PersistentWriter interface {
	Insert(hash [16]byte, entry *cachecore.Entry, isPersistable bool) error
	Lookup(hash [16]byte, width, height uint16) (*cachecore.Entry, bool)
}

// Config configures an Engine.
type Config struct {
	CapacityBytes int64
	// MinBpp is a minimum bits-per-pixel quality setting (spec §4.4). No
	// Engine method reads it: no hit is refused or re-requested on quality
	// grounds.
	MinBpp int
}

// DefaultConfig returns sensible defaults mirroring the server-side cache.
func DefaultConfig() Config {
	return Config{CapacityBytes: 2048 * 1024 * 1024, MinBpp: 0}
}

// Engine holds the viewer's session cache state (spec §3.4).
//
// Not safe for concurrent use: the session cache is strictly
// single-threaded by contract (spec §5); only the persistent tier, reached
// through PersistentWriter, carries its own internal mutex.
type Engine struct {
	cfg Config

	session *cachecore.ArcCache[cachecore.Key[uint64], *cachecore.Entry]
	hasher  *rhash.Hasher
	decoders map[int32]Decoder
	persist  PersistentWriter

	pendingEvictions []uint64
	pendingEvictionHashes [][16]byte
	pendingQueries   [][16]byte
}

// New creates a viewer cache Engine. persist may be nil if the persistent
// tier is disabled (spec config key persistent.enabled).
func New(cfg Config, hasher *rhash.Hasher, decoders map[int32]Decoder, persist PersistentWriter) *Engine {
	if decoders == nil {
		decoders = make(map[int32]Decoder)
	}
	e := &Engine{
		cfg:      cfg,
		hasher:   hasher,
		decoders: decoders,
		persist:  persist,
	}
	e.session = cachecore.New[cachecore.Key[uint64], *cachecore.Entry](cfg.CapacityBytes, e.onSessionEvict)
	return e
}

func (e *Engine) onSessionEvict(key cachecore.Key[uint64], entry *cachecore.Entry) {
	e.pendingEvictions = append(e.pendingEvictions, key.Hash)
}

// OnCachedRectRef handles a session-cache reference (spec §4.4): on hit,
// returns the cached pixels to blit; on miss, reports no pixels. A miss
// queues no RequestCachedData: the engine has no queue for session-cache
// data requests.
func (e *Engine) OnCachedRectRef(rect pixfmt.Rect, id uint64) (pixels []byte, hit bool) {
	key := cachecore.Key[uint64]{Width: rect.Width, Height: rect.Height, Hash: id}
	entry, ok := e.session.Get(key)
	if !ok {
		return nil, false
	}
	if entry.Width != rect.Width || entry.Height != rect.Height {
		return nil, false
	}
	return entry.Pixels, true
}

// OnCachedRectInit handles a session-cache init (spec §4.4): decodes the
// payload, stores it keyed by the composite key, and returns the decoded
// pixels to blit. An error is returned (and nothing stored) if decoding
// fails or the decoded byte length disagrees with the rectangle header.
func (e *Engine) OnCachedRectInit(rect pixfmt.Rect, id uint64, innerEncoding int32, payload []byte) ([]byte, error) {
	decoder, ok := e.decoders[innerEncoding]
	if !ok {
		return nil, fmt.Errorf("viewercache: no decoder registered for inner encoding %d", innerEncoding)
	}
	format := pixfmt.Canonical()
	pixels, err := decoder.Decode(payload, rect, format)
	if err != nil {
		return nil, fmt.Errorf("viewercache: decode failed for id %d: %w", id, err)
	}
	want := int(rect.Height) * int(rect.Width) * format.BytesPerPixel()
	if len(pixels) != want {
		return nil, fmt.Errorf("viewercache: decoded %d bytes, want %d for rect %s", len(pixels), want, rect.String())
	}

	canonicalHash := e.hasher.Session(pixels, format, int(rect.Width), int(rect.Height), int(rect.Width))
	entry := &cachecore.Entry{
		Pixels:        pixels,
		Format:        format,
		Width:         rect.Width,
		Height:        rect.Height,
		StridePixels:  rect.Width,
		CanonicalHash: canonicalHash,
		ActualHash:    id,
		Quality:       cachecore.QualityLossless24Or32,
	}
	key := cachecore.Key[uint64]{Width: rect.Width, Height: rect.Height, Hash: id}
	e.session.Insert(key, entry, entry.SizeBytes())
	return pixels, nil
}

// OnPersistentRectRef handles a persistent-cache reference (spec §4.4):
// looks up by canonical hash, dimension-matched; on miss, enqueues a query.
func (e *Engine) OnPersistentRectRef(rect pixfmt.Rect, hash [16]byte) (pixels []byte, hit bool) {
	if e.persist == nil {
		e.pendingQueries = append(e.pendingQueries, hash)
		return nil, false
	}
	entry, ok := e.persist.Lookup(hash, rect.Width, rect.Height)
	if !ok {
		e.pendingQueries = append(e.pendingQueries, hash)
		return nil, false
	}
	return entry.Pixels, true
}

// OnPersistentRectInit handles a persistent-cache init (spec §4.4): decodes
// the payload, computes the actual hash, and dispatches storage to the
// persistent tier with an isLossless flag derived from hash equality.
func (e *Engine) OnPersistentRectInit(rect pixfmt.Rect, canonicalHash [16]byte, innerEncoding int32, payload []byte) ([]byte, error) {
	decoder, ok := e.decoders[innerEncoding]
	if !ok {
		return nil, fmt.Errorf("viewercache: no decoder registered for inner encoding %d", innerEncoding)
	}
	format := pixfmt.Canonical()
	pixels, err := decoder.Decode(payload, rect, format)
	if err != nil {
		return nil, fmt.Errorf("viewercache: persistent decode failed: %w", err)
	}
	want := int(rect.Height) * int(rect.Width) * format.BytesPerPixel()
	if len(pixels) != want {
		return nil, fmt.Errorf("viewercache: persistent decoded %d bytes, want %d", len(pixels), want)
	}

	actualHash := e.hasher.Persistent(pixels, format, int(rect.Width), int(rect.Height), int(rect.Width))
	isLossless := actualHash == canonicalHash
	quality := cachecore.QualityLossy24Or32
	if isLossless {
		quality = cachecore.QualityLossless24Or32
	}

	entry := &cachecore.Entry{
		Pixels:        pixels,
		Format:        format,
		Width:         rect.Width,
		Height:        rect.Height,
		StridePixels:  rect.Width,
		CanonicalHash: hash128ToUint64Prefix(canonicalHash),
		ActualHash:    hash128ToUint64Prefix(actualHash),
		Quality:       quality,
	}
	if e.persist != nil {
		if err := e.persist.Insert(canonicalHash, entry, true); err != nil {
			return nil, fmt.Errorf("viewercache: persistent store insert failed: %w", err)
		}
	}
	return pixels, nil
}

// hash128ToUint64Prefix narrows a 16-byte hash to the uint64 fields
// CacheEntry.canonicalHash/actualHash carry (spec §3.2 declares these as
// u64 even though persistent identity is keyed by the full 16-byte hash).
func hash128ToUint64Prefix(h [16]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(h[i])
	}
	return v
}

// OnViewerEvictionCRCFailure handles a persistent entry that fails CRC on
// hydration (spec §4.4 failure semantics): its hash is queued on
// pendingEvictionHashes, drained by TakePendingPersistentEvictions, so the
// server learns of the loss. It does not remove anything from the
// persistent tier itself.
func (e *Engine) OnViewerEvictionCRCFailure(hash [16]byte) {
	e.pendingEvictionHashes = append(e.pendingEvictionHashes, hash)
}

// TakePendingEvictions drains the queued session-cache eviction ids,
// emitted once per update cycle (spec §4.4).
func (e *Engine) TakePendingEvictions() []uint64 {
	drained := e.pendingEvictions
	e.pendingEvictions = nil
	return drained
}

// TakePendingPersistentEvictions drains the queued persistent-cache
// eviction hashes.
func (e *Engine) TakePendingPersistentEvictions() [][16]byte {
	drained := e.pendingEvictionHashes
	e.pendingEvictionHashes = nil
	return drained
}

// TakePendingQueries drains the queued persistent-cache query hashes,
// emitted once per update cycle, after evictions (spec §4.4).
func (e *Engine) TakePendingQueries() [][16]byte {
	drained := e.pendingQueries
	e.pendingQueries = nil
	return drained
}

// Stats returns the session ARC's statistics.
func (e *Engine) Stats() cachecore.Stats {
	return e.session.Stats()
}

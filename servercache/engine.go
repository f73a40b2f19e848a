// Package servercache implements ServerCacheEngine (spec §4.3): the
// per-connection server-side cache state that decides, for each outgoing
// rectangle, whether to reference a key the viewer already holds, send an
// init payload and register the key as pending, or fall through to normal
// encoding.
package servercache

import (
	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
)

// DecisionKind enumerates the outcomes of a Lookup.
type DecisionKind int

const (
	// NotEligible means the rectangle should be encoded normally; the
	// caller may still choose to seed the cache via EnqueueInit.
	NotEligible DecisionKind = iota
	// HitRef means the viewer is confirmed to hold ID; emit a reference.
	HitRef
	// MissSendInit means the viewer has explicitly requested ID; send an
	// init payload and the id has already been registered pending.
	MissSendInit
)

// Decision is the result of a Lookup call.
type Decision struct {
	Kind             DecisionKind
	ID               uint64
	BaselineEstimate int64
}

// Config configures eligibility thresholds for an Engine.
type Config struct {
	// MinRectAreaPixels is the minimum rectangle area to consider for
	// caching at all (spec default: 4096).
	MinRectAreaPixels int
	// CapacityBytes bounds the server-side ARC used to retain optional
	// encoded payloads for entries that may need a later init resend.
	CapacityBytes int64
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{MinRectAreaPixels: 4096, CapacityBytes: 2048 * 1024 * 1024}
}

// PendingInit is a queued (id, rect) pair awaiting emission on the next
// update cycle (spec §3.3 pendingInitQueue, §4.8 enqueueInit).
type PendingInit struct {
	ID   uint64
	Rect pixfmt.Rect
}

// Engine holds one connection's cache state (spec §3.3).
//
// Not safe for concurrent use: owned by exactly one connection handler's
// single thread (spec §5).
type Engine struct {
	cfg Config

	cache *cachecore.ArcCache[cachecore.Key[uint64], *cachecore.Entry]

	knownIDs            map[uint64]struct{}
	pendingConfirmation map[uint64]struct{}
	requestedIDs        map[uint64]struct{}
	lossyHashMap        map[uint64]uint64 // canonical -> actual
	lastRefRect         map[uint64]pixfmt.Rect

	pendingInitQueue []PendingInit
}

// New creates an Engine. onEvict, if non-nil, is invoked synchronously
// whenever the internal ARC evicts a retained encoded payload; callers
// typically use it only for diagnostics since eviction here does not
// itself invalidate knownIDs (the viewer, not this store, is authoritative
// for what the remote side holds).
func New(cfg Config, onEvict func(cachecore.Key[uint64], *cachecore.Entry)) *Engine {
	return &Engine{
		cfg:                 cfg,
		cache:               cachecore.New[cachecore.Key[uint64], *cachecore.Entry](cfg.CapacityBytes, onEvict),
		knownIDs:            make(map[uint64]struct{}),
		pendingConfirmation: make(map[uint64]struct{}),
		requestedIDs:        make(map[uint64]struct{}),
		lossyHashMap:        make(map[uint64]uint64),
		lastRefRect:         make(map[uint64]pixfmt.Rect),
	}
}

// Eligible reports whether rect qualifies for cache consideration at all
// (spec §4.3 eligibility: area >= MinRectAreaPixels).
func (e *Engine) Eligible(rect pixfmt.Rect) bool {
	return rect.Area() >= e.cfg.MinRectAreaPixels
}

func (e *Engine) isKnown(id uint64) bool {
	if id == 0 {
		return false
	}
	_, ok := e.knownIDs[id]
	return ok
}

func (e *Engine) isRequested(id uint64) bool {
	if id == 0 {
		return false
	}
	_, ok := e.requestedIDs[id]
	return ok
}

// Lookup implements the decision rule of spec §4.3 steps 3-5 given the
// canonical id and, for lossy encodings, the actual (post-decode) id.
// actual should be 0 when the encoding is lossless or not yet computed.
// Step 1 (canonical == 0) and step 2 (lossy hash computation) are the
// caller's responsibility (ContentHasher, EncoderPolicy); step 6 (seed via
// normal encode) is left to the caller via EnqueueInit.
func (e *Engine) Lookup(canonical, actual uint64, rect pixfmt.Rect, baselineEstimate int64) Decision {
	if canonical == 0 {
		return Decision{Kind: NotEligible}
	}
	if e.isKnown(canonical) {
		return Decision{Kind: HitRef, ID: canonical}
	}
	if actual != 0 && e.isKnown(actual) {
		return Decision{Kind: HitRef, ID: actual}
	}
	if e.isRequested(canonical) {
		e.RegisterPending(canonical, rect)
		return Decision{Kind: MissSendInit, ID: canonical, BaselineEstimate: baselineEstimate}
	}
	if actual != 0 && e.isRequested(actual) {
		e.RegisterPending(actual, rect)
		return Decision{Kind: MissSendInit, ID: actual, BaselineEstimate: baselineEstimate}
	}
	return Decision{Kind: NotEligible}
}

// RegisterKnown records id as confirmed-held by the viewer. Per the
// synchronization discipline (spec §4.3), callers must only call this
// after the corresponding init has actually been written to the wire.
func (e *Engine) RegisterKnown(id uint64) {
	delete(e.pendingConfirmation, id)
	delete(e.requestedIDs, id)
	e.knownIDs[id] = struct{}{}
}

// RegisterPending marks id as awaiting confirmation for the current update
// cycle and records rect as its last reference position for miss recovery.
func (e *Engine) RegisterPending(id uint64, rect pixfmt.Rect) {
	e.pendingConfirmation[id] = struct{}{}
	e.lastRefRect[id] = rect
}

// ConfirmPending promotes every pending id to known on a successful frame
// flush (spec §3.3).
func (e *Engine) ConfirmPending() {
	for id := range e.pendingConfirmation {
		e.knownIDs[id] = struct{}{}
	}
	e.pendingConfirmation = make(map[uint64]struct{})
}

// DropPending discards a pending id without promoting it to known, used
// when an update flush fails (spec §4.3 failure semantics).
func (e *Engine) DropPending(id uint64) {
	delete(e.pendingConfirmation, id)
}

// RecordLossyMapping remembers that a lossy encoding of canonical content C
// decodes, on the viewer, to content with hash actual.
func (e *Engine) RecordLossyMapping(canonical, actual uint64) {
	e.lossyHashMap[canonical] = actual
}

// QueryLossy returns the recorded actual hash for a canonical hash, if any.
func (e *Engine) QueryLossy(canonical uint64) (actual uint64, ok bool) {
	actual, ok = e.lossyHashMap[canonical]
	return actual, ok
}

// OnViewerEviction removes the given ids from knownIDs: the viewer no
// longer holds them, so referencing them would dangle (spec I4).
func (e *Engine) OnViewerEviction(ids []uint64) {
	for _, id := range ids {
		delete(e.knownIDs, id)
	}
}

// OnViewerQuery marks ids as explicitly requested so the next update cycle
// sends inits for them (spec §4.3 onViewerQuery).
func (e *Engine) OnViewerQuery(ids []uint64) {
	for _, id := range ids {
		e.requestedIDs[id] = struct{}{}
		delete(e.knownIDs, id)
	}
}

// OnRequestCachedData handles a viewer's explicit "I don't have id"
// signal (spec §4.3 synchronization discipline, §7 resynchronization): id
// moves from known/pending back to requested, and the caller should
// schedule a targeted refresh of LastRefRect(id) rather than a full-screen
// refresh.
func (e *Engine) OnRequestCachedData(id uint64) (rect pixfmt.Rect, hadRect bool) {
	delete(e.knownIDs, id)
	delete(e.pendingConfirmation, id)
	e.requestedIDs[id] = struct{}{}
	rect, hadRect = e.lastRefRect[id]
	return rect, hadRect
}

// LastRefRect returns the last rectangle position at which id was
// referenced, for targeted miss recovery.
func (e *Engine) LastRefRect(id uint64) (pixfmt.Rect, bool) {
	rect, ok := e.lastRefRect[id]
	return rect, ok
}

// EnqueueInit places (id, rect) on the pending-init queue for emission on
// the next update cycle (spec §4.8 enqueueInit: a deliberate one-cycle
// delay so id registration reflects actual on-wire state).
func (e *Engine) EnqueueInit(id uint64, rect pixfmt.Rect) {
	e.pendingInitQueue = append(e.pendingInitQueue, PendingInit{ID: id, Rect: rect})
}

// DrainPendingInits returns and clears the queued inits, to be sent at the
// start of the next update cycle.
func (e *Engine) DrainPendingInits() []PendingInit {
	drained := e.pendingInitQueue
	e.pendingInitQueue = nil
	return drained
}

// RetainEncoded stores an entry's encoded payload in the server-side ARC so
// it can be resent without re-encoding, keyed by the composite cache key.
func (e *Engine) RetainEncoded(key cachecore.Key[uint64], entry *cachecore.Entry) {
	e.cache.Insert(key, entry, entry.SizeBytes())
}

// LookupRetained returns a previously retained encoded entry, if present.
func (e *Engine) LookupRetained(key cachecore.Key[uint64]) (*cachecore.Entry, bool) {
	return e.cache.Get(key)
}

// Stats returns the underlying ARC's statistics.
func (e *Engine) Stats() cachecore.Stats {
	return e.cache.Stats()
}

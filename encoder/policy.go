// Package encoder implements EncoderPolicy (spec §4.8): the per-rectangle
// decision procedure that ties ContentHasher, ServerCacheEngine, and a
// pluggable rectangle codec together into the hash-then-decide discipline
// a connection handler drives for each outgoing framebuffer rectangle.
package encoder

import (
	"gitlab.com/tinyland/lab/rfbcache/bandwidth"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
	"gitlab.com/tinyland/lab/rfbcache/rhash"
	"gitlab.com/tinyland/lab/rfbcache/servercache"
)

// Codec is the narrow encode/decode contract EncoderPolicy needs from a
// rectangle's wire codec: produce bytes for the wire, and -- for lossy
// codecs only -- decode them back so the server can compute the actual
// post-decode hash (spec §4.8's "server-side round-trip").
type Codec interface {
	// Lossy reports whether this codec can produce pixels on the viewer
	// that differ from the source (e.g. JPEG, Tight with JPEG quality).
	Lossy() bool
	// Encode produces the wire bytes for rect's pixels.
	Encode(pixels []byte, format pixfmt.PixelFormat, rect pixfmt.Rect, stridePixels int) ([]byte, error)
	// Decode reverses Encode, used only when Lossy() is true, to learn
	// what the viewer will actually end up holding.
	Decode(payload []byte, format pixfmt.PixelFormat, rect pixfmt.Rect) ([]byte, error)
}

// Outcome is what the connection handler should actually do with a
// rectangle after Decide runs.
type Outcome int

const (
	// NormalEncode means: encode and send the rectangle as usual (no
	// cache message at all).
	NormalEncode Outcome = iota
	// SendRef means: emit a CachedRect/PersistentCachedRect reference
	// instead of encoding the rectangle.
	SendRef
	// SendInit means: encode as usual but wrap it in a
	// CachedRectInit/PersistentCachedRectInit and register the id pending.
	SendInit
)

// Decision is the result of Decide.
type Decision struct {
	Outcome Outcome
	ID      uint64
	// EncodedPayload is populated for SendInit: the codec output to wrap
	// in the init message.
	EncodedPayload []byte
}

// Policy drives the decide() procedure of spec §4.8 for one connection. It
// holds no state of its own beyond configuration; all cache state lives in
// the ServerCacheEngine and ContentHasher it wraps.
type Policy struct {
	Enabled       bool
	Hasher        *rhash.Hasher
	Engine        *servercache.Engine
	Bandwidth     *bandwidth.Stats
	ClientFormat  pixfmt.PixelFormat
}

// Decide implements spec §4.8's decide(rect, pb) exactly: eligibility
// check, canonical hash, the lossy round-trip when codec.Lossy(), then the
// known/requested lookup cascade via the wrapped ServerCacheEngine.
//
// On the first-seen path (no cache state yet for this content), Decide
// enqueues the rectangle's id for init on the next update cycle and
// returns NormalEncode -- the caller encodes this rectangle exactly as it
// would without caching at all; EnqueueInit's one-cycle delay (spec §4.8)
// ensures id registration lines up with what is actually already on the
// wire.
func (p *Policy) Decide(pixels []byte, rect pixfmt.Rect, stridePixels int, codec Codec) (Decision, error) {
	if !p.Enabled || !p.Engine.Eligible(rect) {
		return Decision{Outcome: NormalEncode}, nil
	}

	canonical := p.Hasher.Session(pixels, p.ClientFormat, int(rect.Width), int(rect.Height), stridePixels)
	if canonical == rhash.NullHash64 {
		return Decision{Outcome: NormalEncode}, nil
	}

	var actual uint64
	var encodedPayload []byte
	if codec.Lossy() {
		encoded, err := codec.Encode(pixels, p.ClientFormat, rect, stridePixels)
		if err != nil {
			return Decision{}, err
		}
		encodedPayload = encoded
		decoded, err := codec.Decode(encoded, p.ClientFormat, rect)
		if err != nil {
			return Decision{}, err
		}
		actual = p.Hasher.Session(decoded, p.ClientFormat, int(rect.Width), int(rect.Height), stridePixels)
		p.Engine.RecordLossyMapping(canonical, actual)
	} else {
		actual = canonical
	}

	baseline := int64(0)
	if p.Bandwidth != nil {
		baseline = p.Bandwidth.EstimateBaseline(int(rect.Width), int(rect.Height))
	}

	decision := p.Engine.Lookup(canonical, actual, rect, baseline)
	switch decision.Kind {
	case servercache.HitRef:
		return Decision{Outcome: SendRef, ID: decision.ID}, nil
	case servercache.MissSendInit:
		if encodedPayload == nil {
			encoded, err := codec.Encode(pixels, p.ClientFormat, rect, stridePixels)
			if err != nil {
				return Decision{}, err
			}
			encodedPayload = encoded
		}
		return Decision{Outcome: SendInit, ID: decision.ID, EncodedPayload: encodedPayload}, nil
	default:
		// First-seen path (spec §4.8): queue an init for next cycle and
		// encode this occurrence normally.
		p.Engine.EnqueueInit(actual, rect)
		return Decision{Outcome: NormalEncode}, nil
	}
}

// ConfirmCycle is called by the connection handler once an update cycle's
// bytes have actually been flushed to the wire: it promotes every
// pending-confirmation id to known (spec §3.3, §5 "decide -> send ->
// register known/pending").
func (p *Policy) ConfirmCycle() {
	p.Engine.ConfirmPending()
}

// DrainCycle returns the inits queued during the previous cycle, to be
// sent at the start of this one before any refs that might depend on them
// (spec §4.8, §5 ordering guarantees).
func (p *Policy) DrainCycle() []servercache.PendingInit {
	return p.Engine.DrainPendingInits()
}

// Package rhash implements ContentHasher (spec §4.1): deterministic content
// identifiers computed over the canonical pixel byte stream.
package rhash

import (
	"crypto/sha256"

	"github.com/cespare/xxhash/v2"

	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
)

// Options configures a Hasher.
type Options struct {
	// SampleAreaThreshold is the rectangle area at or above which sampling
	// kicks in, when Sample is true. Spec default: 262144 pixels.
	SampleAreaThreshold int
	// SampleStride is the pixel step used when sampling (visits every Nth
	// pixel in both dimensions). Spec default: 4.
	SampleStride int
	// Sample enables the sampled-hash fast path. Tests that assert
	// byte-exact round trips must construct a Hasher with Sample: false
	// (spec §9 "sampled-hash mode... treat it as a bandwidth/latency knob
	// and disable it in tests that assert byte-exact round-trips").
	Sample bool
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		SampleAreaThreshold: 262144,
		SampleStride:        4,
		Sample:              false,
	}
}

// Hasher computes deterministic content identifiers from canonical pixels.
type Hasher struct {
	opts Options
}

// New creates a Hasher with the given options.
func New(opts Options) *Hasher {
	if opts.SampleAreaThreshold <= 0 {
		opts.SampleAreaThreshold = DefaultOptions().SampleAreaThreshold
	}
	if opts.SampleStride <= 0 {
		opts.SampleStride = DefaultOptions().SampleStride
	}
	return &Hasher{opts: opts}
}

// NullHash64 is the well-defined sentinel returned on any error condition;
// callers must treat it as "do not cache" (spec §4.1).
const NullHash64 uint64 = 0

// NullHash128 is the 16-byte sentinel for the persistent-cache hash.
var NullHash128 = [16]byte{}

// Session computes the fast 64-bit session-cache identifier from a
// rectangle's pixels, given in format/stride as delivered by the source.
// Dimensions are intentionally excluded from the hash; they live in the
// composite CacheKey (spec §3.1, §4.1).
func (h *Hasher) Session(pixels []byte, format pixfmt.PixelFormat, width, height, stridePixels int) uint64 {
	canon, err := pixfmt.ToCanonical(pixels, format, width, height, stridePixels)
	if err != nil {
		return NullHash64
	}
	return h.hash64(canon, width, height)
}

// Persistent computes the 128-bit canonical-content hash used to key the
// persistent cache, as the upper 16 bytes of a SHA-256 digest (spec §4.1).
func (h *Hasher) Persistent(pixels []byte, format pixfmt.PixelFormat, width, height, stridePixels int) [16]byte {
	canon, err := pixfmt.ToCanonical(pixels, format, width, height, stridePixels)
	if err != nil {
		return NullHash128
	}
	return h.hash128(canon, width, height)
}

// sampledBytes extracts every Nth pixel row/column from a tightly-packed
// canonical (4 bytes/pixel) buffer, applied identically on server and
// viewer so both sides agree on which bytes were hashed (spec §4.1).
func (h *Hasher) sampledBytes(canon []byte, width, height int) []byte {
	if !h.opts.Sample || width*height < h.opts.SampleAreaThreshold {
		return canon
	}
	stride := h.opts.SampleStride
	if stride < 1 {
		stride = 1
	}
	out := make([]byte, 0, (height/stride+1)*(width/stride+1)*4)
	for y := 0; y < height; y += stride {
		row := canon[y*width*4 : (y+1)*width*4]
		for x := 0; x < width; x += stride {
			out = append(out, row[x*4:x*4+4]...)
		}
	}
	return out
}

func (h *Hasher) hash64(canon []byte, width, height int) uint64 {
	data := h.sampledBytes(canon, width, height)
	if len(data) == 0 {
		return NullHash64
	}
	sum := xxhash.Sum64(data)
	if sum == 0 {
		// Avoid colliding with the null sentinel on the astronomically
		// unlikely chance of a genuine zero digest.
		sum = 1
	}
	return sum
}

func (h *Hasher) hash128(canon []byte, width, height int) [16]byte {
	data := h.sampledBytes(canon, width, height)
	if len(data) == 0 {
		return NullHash128
	}
	digest := sha256.Sum256(data)
	var out [16]byte
	copy(out[:], digest[:16])
	if out == NullHash128 {
		out[15] = 1
	}
	return out
}

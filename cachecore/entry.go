// Package cachecore holds the composite cache key, the cache entry, and the
// generic ARC eviction engine shared by the server-side and viewer-side
// caches (spec §3.1, §3.2, §4.2).
package cachecore

import "gitlab.com/tinyland/lab/rfbcache/pixfmt"

// Key is a composite key uniquely identifying cached content: equality
// requires width, height, and the content hash to all match (spec §3.1).
// Dimension mismatch is therefore structurally impossible to collide --
// two rectangles of differing size cannot collide regardless of hash.
//
// H is the hash type: uint64 for the session cache, [16]byte for the
// persistent cache.
type Key[H comparable] struct {
	Width, Height uint16
	Hash          H
}

// QualityCode packs lossless/lossy and bit-depth class into 3 bits, used by
// the viewer to pick the "best available" entry during upgrades (spec
// §3.2).
type QualityCode uint8

const (
	QualityLossy8        QualityCode = iota // lossy, <=8bpp class
	QualityLossy16                          // lossy, 16bpp class
	QualityLossy24Or32                      // lossy, 24/32bpp class
	QualityLossless8                        // lossless, <=8bpp class
	QualityLossless16                       // lossless, 16bpp class
	QualityLossless24Or32                   // lossless, 24/32bpp class, best quality
)

// IsLossless reports whether q denotes a lossless entry.
func (q QualityCode) IsLossless() bool {
	return q >= QualityLossless8
}

// Entry is a cached rectangle's canonical pixels plus the metadata needed to
// blit it, compare it against incoming updates, and order it for eviction
// (spec §3.2).
type Entry struct {
	// Pixels holds the canonical (lossless) pixel bytes, tightly packed in
	// the 32-bpp/24-depth/true-colour layout (pixfmt.Canonical), never the
	// original wire encoding.
	Pixels []byte
	Format pixfmt.PixelFormat

	Width, Height, StridePixels uint16

	// LastAccessTime is a monotonic counter or wall-clock stamp used only
	// for LRU/ARC tie-breaks, never for correctness.
	LastAccessTime uint32

	// CanonicalHash is the hash of the canonical (lossless) pixel bytes.
	CanonicalHash uint64
	// ActualHash is the hash the viewer will compute after decoding the
	// transmitted payload; equals CanonicalHash for lossless encodings.
	ActualHash uint64

	Quality QualityCode

	// Encoded optionally retains the server-side encoded payload, kept
	// only if a later init response for the same key may be needed.
	Encoded []byte
}

// SizeBytes is the byte-capacity weight ArcCache uses for this entry: the
// canonical pixel buffer plus the retained encoded payload, if any.
func (e *Entry) SizeBytes() int64 {
	return int64(len(e.Pixels)) + int64(len(e.Encoded))
}

// Validate checks the invariants of spec §3.2: pixels.size ==
// height*stridePixels*bytesPerPixel, stridePixels >= width, and lossless
// entries have canonicalHash == actualHash.
func (e *Entry) Validate() error {
	bpp := e.Format.BytesPerPixel()
	want := int(e.Height) * int(e.StridePixels) * bpp
	if len(e.Pixels) != want {
		return errEntryf("pixel buffer is %d bytes, want %d (h=%d stride=%d bpp=%d)", len(e.Pixels), want, e.Height, e.StridePixels, bpp)
	}
	if e.StridePixels < e.Width {
		return errEntryf("stride %d is narrower than width %d", e.StridePixels, e.Width)
	}
	if e.Quality.IsLossless() && e.CanonicalHash != e.ActualHash {
		return errEntryf("lossless entry has mismatched canonical/actual hashes")
	}
	return nil
}

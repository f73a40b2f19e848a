package encoder

import (
	"bytes"
	"testing"

	"gitlab.com/tinyland/lab/rfbcache/bandwidth"
	"gitlab.com/tinyland/lab/rfbcache/pixfmt"
	"gitlab.com/tinyland/lab/rfbcache/rhash"
	"gitlab.com/tinyland/lab/rfbcache/servercache"
)

// losslessCodec passes pixels through untouched; never invoked for Decode.
type losslessCodec struct{ encodeCalls int }

func (c *losslessCodec) Lossy() bool { return false }
func (c *losslessCodec) Encode(pixels []byte, format pixfmt.PixelFormat, rect pixfmt.Rect, stridePixels int) ([]byte, error) {
	c.encodeCalls++
	return append([]byte(nil), pixels...), nil
}
func (c *losslessCodec) Decode(payload []byte, format pixfmt.PixelFormat, rect pixfmt.Rect) ([]byte, error) {
	panic("Decode should never be called for a non-lossy codec")
}

// lossyCodec simulates quantization: Decode returns a fixed, different
// byte pattern regardless of input, so actual != canonical.
type lossyCodec struct{}

func (lossyCodec) Lossy() bool { return true }
func (lossyCodec) Encode(pixels []byte, format pixfmt.PixelFormat, rect pixfmt.Rect, stridePixels int) ([]byte, error) {
	return []byte("compressed"), nil
}
func (lossyCodec) Decode(payload []byte, format pixfmt.PixelFormat, rect pixfmt.Rect) ([]byte, error) {
	return bytes.Repeat([]byte{0x42}, int(rect.Width)*int(rect.Height)*4), nil
}

func canonicalPixels(w, h int, fill byte) []byte {
	return bytes.Repeat([]byte{fill, fill, fill, 0}, w*h)
}

func newPolicy(cap int64) (*Policy, *servercache.Engine) {
	eng := servercache.New(servercache.Config{MinRectAreaPixels: 64, CapacityBytes: cap}, nil)
	p := &Policy{
		Enabled:      true,
		Hasher:       rhash.New(rhash.Options{Sample: false}),
		Engine:       eng,
		Bandwidth:    bandwidth.NewStats(nil),
		ClientFormat: pixfmt.Canonical(),
	}
	return p, eng
}

func TestDecideBelowMinSizeIsNormalEncode(t *testing.T) {
	p, _ := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 4, Height: 4}
	d, err := p.Decide(canonicalPixels(4, 4, 1), rect, 4, &losslessCodec{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != NormalEncode {
		t.Fatalf("got %v, want NormalEncode", d.Outcome)
	}
}

func TestDecideFirstSeenQueuesInitAndEncodesNormally(t *testing.T) {
	p, eng := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 16, Height: 16}
	codec := &losslessCodec{}
	d, err := p.Decide(canonicalPixels(16, 16, 9), rect, 16, codec)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != NormalEncode {
		t.Fatalf("got %v, want NormalEncode on first sight", d.Outcome)
	}
	pending := eng.DrainPendingInits()
	if len(pending) != 1 {
		t.Fatalf("expected exactly one queued init, got %d", len(pending))
	}
}

func TestDecideSendsRefWhenViewerKnowsID(t *testing.T) {
	p, eng := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 16, Height: 16}
	pixels := canonicalPixels(16, 16, 5)
	canonical := p.Hasher.Session(pixels, p.ClientFormat, 16, 16, 16)
	eng.RegisterKnown(canonical)

	d, err := p.Decide(pixels, rect, 16, &losslessCodec{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != SendRef {
		t.Fatalf("got %v, want SendRef", d.Outcome)
	}
	if d.ID != canonical {
		t.Fatalf("got id %d, want %d", d.ID, canonical)
	}
}

func TestDecideSendsInitWhenRequested(t *testing.T) {
	p, eng := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 16, Height: 16}
	pixels := canonicalPixels(16, 16, 7)
	canonical := p.Hasher.Session(pixels, p.ClientFormat, 16, 16, 16)
	eng.OnViewerQuery([]uint64{canonical})

	d, err := p.Decide(pixels, rect, 16, &losslessCodec{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != SendInit {
		t.Fatalf("got %v, want SendInit", d.Outcome)
	}
	if len(d.EncodedPayload) == 0 {
		t.Fatalf("expected a non-empty encoded payload for SendInit")
	}
}

func TestDecideLossyCodecRecordsMappingAndRoundTrips(t *testing.T) {
	p, eng := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 16, Height: 16}
	pixels := canonicalPixels(16, 16, 3)
	canonical := p.Hasher.Session(pixels, p.ClientFormat, 16, 16, 16)

	d, err := p.Decide(pixels, rect, 16, lossyCodec{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != NormalEncode {
		t.Fatalf("got %v, want NormalEncode on first sight", d.Outcome)
	}

	actual, ok := eng.QueryLossy(canonical)
	if !ok {
		t.Fatalf("expected a recorded lossy mapping for canonical id %d", canonical)
	}
	if actual == canonical {
		t.Fatalf("expected the lossy actual hash to differ from the canonical hash")
	}
}

func TestConfirmCyclePromotesPendingToKnown(t *testing.T) {
	p, eng := newPolicy(1024 * 1024)
	rect := pixfmt.Rect{Width: 16, Height: 16}
	pixels := canonicalPixels(16, 16, 2)
	canonical := p.Hasher.Session(pixels, p.ClientFormat, 16, 16, 16)
	eng.OnViewerQuery([]uint64{canonical})

	if _, err := p.Decide(pixels, rect, 16, &losslessCodec{}); err != nil {
		t.Fatalf("decide: %v", err)
	}
	p.ConfirmCycle()

	d, err := p.Decide(pixels, rect, 16, &losslessCodec{})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if d.Outcome != SendRef {
		t.Fatalf("got %v, want SendRef after confirmation", d.Outcome)
	}
}

// Package pixfmt describes RFB pixel formats and the canonical byte layout
// the cache engine hashes and stores pixels in.
package pixfmt

import "fmt"

// PixelFormat mirrors the RFB PIXEL_FORMAT structure: enough information to
// interpret a raw pixel byte stream without reference to any other state.
type PixelFormat struct {
	BitsPerPixel uint8
	Depth        uint8
	BigEndian    bool
	TrueColor    bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// BytesPerPixel returns the wire size of one pixel under this format.
func (f PixelFormat) BytesPerPixel() int {
	return int(f.BitsPerPixel) / 8
}

// Canonical is the fixed 32-bpp, 24-depth, little-endian true-colour layout
// used for hashing and persistent storage (spec §3.2, §4.1): R, G, B occupy
// the low 24 bits of each 4-byte pixel, and the padding byte is always zero.
func Canonical() PixelFormat {
	return PixelFormat{
		BitsPerPixel: 32,
		Depth:        24,
		BigEndian:    false,
		TrueColor:    true,
		RedMax:       255,
		GreenMax:     255,
		BlueMax:      255,
		RedShift:     0,
		GreenShift:   8,
		BlueShift:    16,
	}
}

// IsCanonical reports whether f is byte-identical to Canonical().
func (f PixelFormat) IsCanonical() bool {
	return f == Canonical()
}

// Rect is a dimensioned, positioned pixel region as delivered by the host
// framebuffer-update protocol.
type Rect struct {
	X, Y          uint16
	Width, Height uint16
}

// Area returns width*height as an int, safe from uint16*uint16 overflow.
func (r Rect) Area() int {
	return int(r.Width) * int(r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

func extractChannel(v uint32, shift uint8, max uint16) uint8 {
	bits := bitsForMax(max)
	raw := (v >> shift) & ((1 << bits) - 1)
	if bits == 8 {
		return uint8(raw)
	}
	// Scale an arbitrary-width channel up to 8 bits.
	return uint8((raw * 255) / uint32(max))
}

func bitsForMax(max uint16) uint32 {
	bits := uint32(0)
	for (uint32(1) << bits) <= uint32(max) {
		bits++
	}
	if bits == 0 {
		bits = 1
	}
	return bits
}

func readPixel(b []byte, bpp int, bigEndian bool) uint32 {
	var v uint32
	if bigEndian {
		for i := 0; i < bpp; i++ {
			v = (v << 8) | uint32(b[i])
		}
	} else {
		for i := bpp - 1; i >= 0; i-- {
			v = (v << 8) | uint32(b[i])
		}
	}
	return v
}

// ToCanonical converts a tightly-strided rectangle of pixels (stridePixels
// measured in pixels, per spec §3.2) from src's format into the canonical
// 32-bpp/24-depth/little-endian layout, tightly packed row-by-row with no
// stride padding. This is the byte stream ContentHasher hashes and
// PersistentStore persists.
//
// byteLen for src is height*stridePixels*bytesPerPixel -- never
// height*stridePixels alone (spec §4.1's "critical stride rule").
func ToCanonical(src []byte, format PixelFormat, width, height, stridePixels int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pixfmt: zero-sized rectangle %dx%d", width, height)
	}
	if stridePixels < width {
		return nil, fmt.Errorf("pixfmt: stride %d shorter than width %d", stridePixels, width)
	}
	bpp := format.BytesPerPixel()
	if bpp <= 0 {
		return nil, fmt.Errorf("pixfmt: invalid bits-per-pixel %d", format.BitsPerPixel)
	}
	need := height * stridePixels * bpp
	if len(src) < need {
		return nil, fmt.Errorf("pixfmt: short buffer: need %d bytes (h=%d stride=%d bpp=%d), got %d", need, height, stridePixels, bpp, len(src))
	}

	out := make([]byte, height*width*4)
	rowBytesSrc := stridePixels * bpp
	for y := 0; y < height; y++ {
		srcRow := src[y*rowBytesSrc : y*rowBytesSrc+width*bpp]
		dstRow := out[y*width*4 : (y+1)*width*4]
		for x := 0; x < width; x++ {
			px := readPixel(srcRow[x*bpp:x*bpp+bpp], bpp, format.BigEndian)
			r := extractChannel(px, format.RedShift, format.RedMax)
			g := extractChannel(px, format.GreenShift, format.GreenMax)
			bch := extractChannel(px, format.BlueShift, format.BlueMax)
			o := dstRow[x*4 : x*4+4]
			o[0] = r
			o[1] = g
			o[2] = bch
			o[3] = 0 // padding byte normalized to zero
		}
	}
	return out, nil
}

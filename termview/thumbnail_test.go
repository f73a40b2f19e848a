package termview

import (
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
)

func TestEntryToImageConvertsCanonicalPixels(t *testing.T) {
	entry := &cachecore.Entry{
		Width:  2,
		Height: 2,
		Pixels: []byte{
			10, 20, 30, 0, 40, 50, 60, 0,
			70, 80, 90, 0, 100, 110, 120, 0,
		},
	}
	img, err := EntryToImage(entry)
	if err != nil {
		t.Fatalf("EntryToImage: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if uint8(r>>8) != 10 || uint8(g>>8) != 20 || uint8(b>>8) != 30 || a>>8 != 0xFF {
		t.Fatalf("got rgba(%d,%d,%d,%d), want (10,20,30,255)", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestEntryToImageRejectsShortBuffer(t *testing.T) {
	entry := &cachecore.Entry{Width: 4, Height: 4, Pixels: []byte{1, 2, 3, 0}}
	if _, err := EntryToImage(entry); err == nil {
		t.Fatalf("expected an error for a too-short pixel buffer")
	}
}

func TestRenderProtocolNoneReturnsTextSummary(t *testing.T) {
	entry := &cachecore.Entry{Width: 2, Height: 2, Pixels: make([]byte, 16)}
	img, err := EntryToImage(entry)
	if err != nil {
		t.Fatalf("EntryToImage: %v", err)
	}
	out, err := Render(img, Capabilities{Protocol: ProtocolNone}, 0, 0)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "2x2") {
		t.Fatalf("expected dimensions in text summary, got %q", out)
	}
}

func TestRenderHalfblocksProducesAnsiEscapes(t *testing.T) {
	entry := &cachecore.Entry{
		Width: 2, Height: 2,
		Pixels: []byte{
			255, 0, 0, 0, 0, 255, 0, 0,
			0, 0, 255, 0, 255, 255, 255, 0,
		},
	}
	img, err := EntryToImage(entry)
	if err != nil {
		t.Fatalf("EntryToImage: %v", err)
	}
	out, err := Render(img, Capabilities{Protocol: ProtocolHalfblocks}, 10, 10)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "\x1b[38;2;") {
		t.Fatalf("expected true-color ANSI escapes in halfblocks output, got %q", out)
	}
}

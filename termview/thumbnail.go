package termview

import (
	"fmt"
	"image"
	"strings"

	"github.com/blacktop/go-termimg"
	"github.com/disintegration/imaging"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
)

// EntryToImage decodes a cache entry's canonical pixel bytes (spec §3.2:
// 32-bpp, R/G/B in the low 3 bytes, 0 padding byte) into a standard
// image.Image, for preview rendering.
func EntryToImage(e *cachecore.Entry) (image.Image, error) {
	if e == nil || len(e.Pixels) == 0 {
		return nil, fmt.Errorf("termview: empty entry")
	}
	w, h := int(e.Width), int(e.Height)
	need := w * h * 4
	if len(e.Pixels) < need {
		return nil, fmt.Errorf("termview: entry pixel buffer too short: need %d, have %d", need, len(e.Pixels))
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		src := e.Pixels[i*4 : i*4+4]
		dst := img.Pix[i*4 : i*4+4]
		dst[0] = src[0] // R
		dst[1] = src[1] // G
		dst[2] = src[2] // B
		dst[3] = 0xFF   // opaque; canonical padding byte carries no alpha
	}
	return img, nil
}

// Render produces a printable representation of img sized to fit within
// maxCols x maxRows character cells, using the best available protocol in
// caps (go-termimg's Kitty/iTerm2/Sixel backends, falling back to
// half-block ANSI art, or a one-line text summary with no terminal
// graphics support at all).
func Render(img image.Image, caps Capabilities, maxCols, maxRows int) (string, error) {
	if maxCols <= 0 {
		maxCols = 32
	}
	if maxRows <= 0 {
		maxRows = 16
	}

	switch caps.Protocol {
	case ProtocolNone:
		b := img.Bounds()
		return fmt.Sprintf("[thumbnail %dx%d, no terminal graphics support]", b.Dx(), b.Dy()), nil
	case ProtocolTermimg:
		return renderTermimg(img, caps.TermimgProtocol, maxCols, maxRows)
	default:
		return renderHalfblocks(img, maxCols, maxRows)
	}
}

func renderTermimg(img image.Image, proto string, maxCols, maxRows int) (string, error) {
	ti := termimg.New(img)
	if ti == nil {
		return "", fmt.Errorf("termview: go-termimg: failed to wrap image")
	}
	var p termimg.Protocol
	switch proto {
	case "iterm2":
		p = termimg.ITerm2
	case "sixel":
		p = termimg.Sixel
	default:
		p = termimg.Kitty
	}
	ti.Protocol(p).Size(maxCols, maxRows).Scale(termimg.ScaleFit)
	return ti.Render()
}

// renderHalfblocks is the universal fallback: two vertically-stacked
// source pixels per character cell, foreground/background true-color ANSI
// (adapted from the teacher's pure-Go halfblocks renderer, with resizing
// delegated to disintegration/imaging rather than the teacher's
// hand-rolled Lanczos/unsharp pipeline).
func renderHalfblocks(img image.Image, maxCols, maxRows int) (string, error) {
	resized := imaging.Fit(img, maxCols, maxRows*2, imaging.Lanczos)
	bounds := resized.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return "", fmt.Errorf("termview: nothing to render")
	}

	var b strings.Builder
	b.Grow(w * (h/2 + 1) * 24)
	for y := 0; y < h; y += 2 {
		if y > 0 {
			b.WriteString("\x1b[0m\n")
		}
		for x := 0; x < w; x++ {
			tr, tg, tb, ta := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			if ta == 0 {
				b.WriteString("\x1b[0m ")
				continue
			}
			if y+1 < h {
				br, bg, bb, ba := resized.At(bounds.Min.X+x, bounds.Min.Y+y+1).RGBA()
				if ba == 0 {
					fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[49m▀", tr>>8, tg>>8, tb>>8)
					continue
				}
				fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
					tr>>8, tg>>8, tb>>8, br>>8, bg>>8, bb>>8)
				continue
			}
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[49m▀", tr>>8, tg>>8, tb>>8)
		}
	}
	b.WriteString("\x1b[0m")
	return b.String(), nil
}

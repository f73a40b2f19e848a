// Package termview detects terminal capabilities and renders cache-entry
// thumbnails for the cachemon debug tool: which image protocol (if any)
// the attached terminal supports, and how to turn a cachecore.Entry's
// canonical pixels into something printable.
package termview

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Protocol identifies which image rendering technique cachemon should use.
type Protocol int

const (
	// ProtocolNone means stdout isn't a terminal cachemon can draw
	// images on at all; render a text summary instead.
	ProtocolNone Protocol = iota
	// ProtocolTermimg means the terminal supports one of go-termimg's
	// backends (Kitty, iTerm2, Sixel); Capabilities.TermimgProtocol names
	// which one.
	ProtocolTermimg
	// ProtocolHalfblocks is the universal true-color fallback: two
	// pixels per character cell via Unicode half-block glyphs.
	ProtocolHalfblocks
)

// Capabilities is the detected terminal environment for one cachemon run.
type Capabilities struct {
	Protocol        Protocol
	TermimgProtocol string // "kitty", "iterm2", or "sixel"; only set when Protocol == ProtocolTermimg
	TrueColor       bool
	Columns, Rows   int
}

// Detect inspects stdout and the environment once at startup. Unlike the
// teacher's terminal package, this does not cache a process-wide
// singleton: cachemon is short-lived and re-detects on every run.
func Detect() Capabilities {
	caps := Capabilities{Columns: 80, Rows: 24}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		caps.Protocol = ProtocolNone
		return caps
	}

	profile := termenv.NewOutput(os.Stdout).Profile
	caps.TrueColor = profile == termenv.TrueColor

	if proto, ok := detectTermimgProtocol(); ok {
		caps.Protocol = ProtocolTermimg
		caps.TermimgProtocol = proto
	} else {
		caps.Protocol = ProtocolHalfblocks
	}

	if cols, rows, ok := queryWindowSize(); ok {
		caps.Columns, caps.Rows = cols, rows
	}
	return caps
}

// detectTermimgProtocol picks a go-termimg backend from environment hints,
// the same signals the teacher's terminal.Detect layer 1 used (program
// name and TERM), but collapsed to exactly the protocols cachemon wires
// into its renderer.
func detectTermimgProtocol() (string, bool) {
	switch {
	case os.Getenv("KITTY_WINDOW_ID") != "", os.Getenv("TERM_PROGRAM") == "ghostty":
		return "kitty", true
	case os.Getenv("TERM_PROGRAM") == "WezTerm":
		return "kitty", true
	case os.Getenv("TERM_PROGRAM") == "iTerm.app":
		return "iterm2", true
	default:
		return "", false
	}
}

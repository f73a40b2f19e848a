package components

import (
	"fmt"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Column sizing
// ---------------------------------------------------------------------------

// SizingKind discriminates the two column sizing strategies an EntryTable
// supports. Cachemon's columns are either a fixed character width (hash,
// size, quality) or share whatever space is left (bytes), so unlike a
// general-purpose table there is no percentage-of-width sizing.
type SizingKind int

const (
	sizingFixed SizingKind = iota
	sizingFill
)

// ColumnSizing describes how a column's width is computed.
type ColumnSizing struct {
	Kind  SizingKind
	Value int // width for Fixed, unused for Fill
}

// SizingFixed returns a ColumnSizing that allocates exactly width characters.
func SizingFixed(width int) ColumnSizing {
	if width < 0 {
		width = 0
	}
	return ColumnSizing{Kind: sizingFixed, Value: width}
}

// SizingFill returns a ColumnSizing that shares remaining space equally with
// other Fill columns.
func SizingFill() ColumnSizing {
	return ColumnSizing{Kind: sizingFill}
}

// ---------------------------------------------------------------------------
// Column and Row
// ---------------------------------------------------------------------------

// EntryColumn defines a single column in an EntryTable.
type EntryColumn struct {
	Title  string
	Sizing ColumnSizing
	Align  Align
}

// Row is one rendered entry: the cache entry's hash as a short hex ID plus
// the display cells (hash prefix, dimensions, quality tier, byte count).
type Row struct {
	Cells []string
	ID    string
}

// ---------------------------------------------------------------------------
// Style configuration
// ---------------------------------------------------------------------------

// EntryHeaderStyle controls the visual appearance of the header row.
type EntryHeaderStyle struct {
	Bold    bool
	FgColor string // hex "#RRGGBB"
	BgColor string // hex "#RRGGBB"
}

// EntryRowStyle controls the visual appearance of data rows.
type EntryRowStyle struct {
	EvenBgColor     string // hex "#RRGGBB" -- even row (0-indexed) background
	OddBgColor      string // hex "#RRGGBB" -- odd row background
	SelectedBgColor string // hex "#RRGGBB"
}

// EntryTableConfig is the configuration used to construct an EntryTable.
type EntryTableConfig struct {
	Columns       []EntryColumn
	HeaderStyle   EntryHeaderStyle
	RowStyle      EntryRowStyle
	ShowHeader    bool
	ShowBorder    bool
	BorderChar    string
	HeaderSepChar string
}

// ---------------------------------------------------------------------------
// EntryTable
// ---------------------------------------------------------------------------

// EntryTable is a scrollable, filterable, always-selectable table of
// persistent cache entries. Cachemon has exactly one table and it is always
// browsable with the keyboard, so unlike a general-purpose widget this has
// no Selectable toggle and no freeze/unfreeze pause for separate scroll and
// data-mutation concerns -- the selection cursor always keeps itself on
// screen.
type EntryTable struct {
	mu           sync.Mutex
	columns      []EntryColumn
	rows         []Row
	headerStyle  EntryHeaderStyle
	rowStyle     EntryRowStyle
	showHeader   bool
	showBorder   bool
	borderChar   string
	headerSep    string
	scrollOffset int
	selectedIdx  int // index into filteredRows
	filterFn     func(Row) bool
	filteredRows []Row // cached filtered view
	lastHeight   int   // data-area lines (rows plus scroll indicators) at last Render, used to keep selection in view
}

// NewEntryTable creates a new EntryTable from cfg.
func NewEntryTable(cfg EntryTableConfig) *EntryTable {
	border := cfg.BorderChar
	if border == "" {
		border = "│"
	}
	sep := cfg.HeaderSepChar
	if sep == "" {
		sep = "─"
	}

	et := &EntryTable{
		columns:     cfg.Columns,
		headerStyle: cfg.HeaderStyle,
		rowStyle:    cfg.RowStyle,
		showHeader:  cfg.ShowHeader,
		showBorder:  cfg.ShowBorder,
		borderChar:  border,
		headerSep:   sep,
		selectedIdx: -1,
	}
	et.filteredRows = et.applyFilter(et.rows)
	return et
}

// SetRows replaces all data. Resets scroll and selection.
func (et *EntryTable) SetRows(rows []Row) {
	et.mu.Lock()
	defer et.mu.Unlock()
	et.rows = rows
	et.filteredRows = et.applyFilter(et.rows)
	et.scrollOffset = 0
	et.selectedIdx = -1
}

// SelectNext moves the selection cursor down, scrolling the viewport to
// keep it visible.
func (et *EntryTable) SelectNext() {
	et.mu.Lock()
	defer et.mu.Unlock()
	if len(et.filteredRows) == 0 {
		return
	}
	et.selectedIdx++
	if et.selectedIdx >= len(et.filteredRows) {
		et.selectedIdx = len(et.filteredRows) - 1
	}
	et.scrollToSelection()
}

// SelectPrev moves the selection cursor up, scrolling the viewport to keep
// it visible.
func (et *EntryTable) SelectPrev() {
	et.mu.Lock()
	defer et.mu.Unlock()
	if len(et.filteredRows) == 0 {
		return
	}
	if et.selectedIdx < 0 {
		et.selectedIdx = 0
	} else {
		et.selectedIdx--
		if et.selectedIdx < 0 {
			et.selectedIdx = 0
		}
	}
	et.scrollToSelection()
}

// scrollToSelection adjusts scrollOffset so selectedIdx falls within the
// rows visible at the last Render call, leaving room for the ▲/▼ scroll
// indicator lines. Must be called with mu held.
func (et *EntryTable) scrollToSelection() {
	if et.lastHeight <= 0 || et.selectedIdx < 0 {
		return
	}
	rowsShown := et.lastHeight - 2 // both indicators may take a line
	if rowsShown < 1 {
		rowsShown = 1
	}
	if et.selectedIdx < et.scrollOffset {
		et.scrollOffset = et.selectedIdx
	} else if et.selectedIdx >= et.scrollOffset+rowsShown {
		et.scrollOffset = et.selectedIdx - rowsShown + 1
	}
}

// SelectedRow returns the currently selected row, or nil if nothing is
// selected.
func (et *EntryTable) SelectedRow() *Row {
	et.mu.Lock()
	defer et.mu.Unlock()
	if et.selectedIdx < 0 || et.selectedIdx >= len(et.filteredRows) {
		return nil
	}
	r := et.filteredRows[et.selectedIdx]
	return &r
}

// SetFilter installs a filter function. Pass nil to clear. Resets scroll and
// selection.
func (et *EntryTable) SetFilter(fn func(Row) bool) {
	et.mu.Lock()
	defer et.mu.Unlock()
	et.filterFn = fn
	et.filteredRows = et.applyFilter(et.rows)
	et.scrollOffset = 0
	et.selectedIdx = -1
}

// Render draws the table into a string of the given dimensions. Each line is
// exactly width visible characters (padded with spaces). The output has
// exactly height lines separated by newlines.
func (et *EntryTable) Render(width, height int) string {
	et.mu.Lock()
	defer et.mu.Unlock()

	if width <= 0 || height <= 0 {
		return ""
	}

	resetSeq := Reset()

	colWidths := et.resolveWidths(width)

	headerLines := 0
	if et.showHeader {
		headerLines = 2 // header row + separator
	}

	dataHeight := height - headerLines
	if dataHeight < 0 {
		dataHeight = 0
	}
	et.lastHeight = dataHeight

	rows := et.filteredRows

	if len(rows) == 0 && dataHeight > 0 {
		var lines []string
		if et.showHeader {
			lines = append(lines, et.renderHeader(colWidths, width))
			lines = append(lines, et.renderSeparator(colWidths, width))
		}
		noData := Truncate("(no entries cached)", width)
		lines = append(lines, PadCenter(noData, width))
		for len(lines) < height {
			lines = append(lines, strings.Repeat(" ", width))
		}
		return strings.Join(lines[:height], "\n")
	}

	if et.scrollOffset > len(rows) {
		et.scrollOffset = len(rows)
	}

	if dataHeight > 0 {
		topIndicator := et.scrollOffset > 0
		bottomIndicator := (et.scrollOffset + dataHeight) < len(rows)
		visibleDataLines := dataHeight
		if topIndicator {
			visibleDataLines--
		}
		if bottomIndicator {
			visibleDataLines--
		}
		if visibleDataLines <= 0 {
			topIndicator = false
			bottomIndicator = false
			visibleDataLines = dataHeight
		}

		if topIndicator && !bottomIndicator {
			if et.scrollOffset+visibleDataLines < len(rows) {
				bottomIndicator = true
				visibleDataLines--
				if visibleDataLines <= 0 {
					topIndicator = false
					bottomIndicator = false
					visibleDataLines = dataHeight
				}
			}
		}

		maxOffset := len(rows) - visibleDataLines
		if maxOffset < 0 {
			maxOffset = 0
		}
		if et.scrollOffset > maxOffset {
			et.scrollOffset = maxOffset
		}

		topIndicator = et.scrollOffset > 0
		remaining := len(rows) - et.scrollOffset
		visibleDataLines = dataHeight
		if topIndicator {
			visibleDataLines--
		}
		if remaining > visibleDataLines {
			bottomIndicator = true
			visibleDataLines--
		} else {
			bottomIndicator = false
		}
		if visibleDataLines <= 0 {
			topIndicator = false
			bottomIndicator = false
			visibleDataLines = dataHeight
		}

		var lines []string

		if et.showHeader {
			lines = append(lines, et.renderHeader(colWidths, width))
			lines = append(lines, et.renderSeparator(colWidths, width))
		}

		if topIndicator {
			indicator := fmt.Sprintf("▲ %d more", et.scrollOffset)
			lines = append(lines, PadCenter(Truncate(indicator, width), width))
		}

		end := et.scrollOffset + visibleDataLines
		if end > len(rows) {
			end = len(rows)
		}
		for i := et.scrollOffset; i < end; i++ {
			lines = append(lines, et.renderRow(rows[i], i, colWidths, width)+resetSeq)
		}

		if bottomIndicator {
			moreCount := len(rows) - end
			indicator := fmt.Sprintf("▼ %d more", moreCount)
			lines = append(lines, PadCenter(Truncate(indicator, width), width))
		}

		for len(lines) < height {
			lines = append(lines, strings.Repeat(" ", width))
		}
		if len(lines) > height {
			lines = lines[:height]
		}
		return strings.Join(lines, "\n")
	}

	var lines []string
	if et.showHeader && height >= 1 {
		lines = append(lines, et.renderHeader(colWidths, width))
		if height >= 2 {
			lines = append(lines, et.renderSeparator(colWidths, width))
		}
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines[:height], "\n")
}

// ---------------------------------------------------------------------------
// Internal rendering helpers
// ---------------------------------------------------------------------------

func (et *EntryTable) renderHeader(colWidths []int, totalWidth int) string {
	var sb strings.Builder
	fgSeq := Color(et.headerStyle.FgColor)
	bgSeq := BgColor(et.headerStyle.BgColor)
	boldSeq := ""
	if et.headerStyle.Bold {
		boldSeq = "\x1b[1m"
	}

	prefix := bgSeq + fgSeq + boldSeq

	usedWidth := 0
	for i, col := range et.columns {
		if i >= len(colWidths) {
			break
		}
		w := colWidths[i]
		if w <= 0 {
			continue
		}
		if i > 0 && et.showBorder && totalWidth >= 20 {
			sb.WriteString(prefix)
			sb.WriteString(et.borderChar)
			usedWidth++
		}
		title := padAlign(Truncate(col.Title, w), w, col.Align)
		sb.WriteString(prefix)
		sb.WriteString(title)
		usedWidth += w
	}
	sb.WriteString(Reset())

	if usedWidth < totalWidth {
		sb.WriteString(strings.Repeat(" ", totalWidth-usedWidth))
	}
	return sb.String()
}

func (et *EntryTable) renderSeparator(colWidths []int, totalWidth int) string {
	var sb strings.Builder
	usedWidth := 0
	for i, w := range colWidths {
		if w <= 0 {
			continue
		}
		if i > 0 && et.showBorder && totalWidth >= 20 {
			sb.WriteString("┼")
			usedWidth++
		}
		sb.WriteString(strings.Repeat(et.headerSep, w))
		usedWidth += w
	}
	if usedWidth < totalWidth {
		sb.WriteString(strings.Repeat(et.headerSep, totalWidth-usedWidth))
	}
	return Truncate(sb.String(), totalWidth)
}

func (et *EntryTable) renderRow(row Row, rowIndex int, colWidths []int, totalWidth int) string {
	var sb strings.Builder

	bgSeq := ""
	if et.selectedIdx >= 0 && rowIndex == et.selectedIdx {
		bgSeq = BgColor(et.rowStyle.SelectedBgColor)
	} else if rowIndex%2 == 0 {
		bgSeq = BgColor(et.rowStyle.EvenBgColor)
	} else {
		bgSeq = BgColor(et.rowStyle.OddBgColor)
	}

	usedWidth := 0
	for i, col := range et.columns {
		if i >= len(colWidths) {
			break
		}
		w := colWidths[i]
		if w <= 0 {
			continue
		}
		if i > 0 && et.showBorder && totalWidth >= 20 {
			sb.WriteString(bgSeq)
			sb.WriteString(et.borderChar)
			usedWidth++
		}
		cell := ""
		if i < len(row.Cells) {
			cell = row.Cells[i]
		}
		cell = padAlign(Truncate(cell, w), w, col.Align)
		sb.WriteString(bgSeq)
		sb.WriteString(cell)
		usedWidth += w
	}

	if usedWidth < totalWidth {
		sb.WriteString(bgSeq)
		sb.WriteString(strings.Repeat(" ", totalWidth-usedWidth))
	}
	sb.WriteString(Reset())

	return sb.String()
}

// padAlign pads s to width according to align, using the shared text
// helpers rather than a private copy.
func padAlign(s string, width int, align Align) string {
	switch align {
	case AlignRight:
		return PadLeft(s, width)
	case AlignCenter:
		return PadCenter(s, width)
	default:
		return PadRight(s, width)
	}
}

// ---------------------------------------------------------------------------
// Column width resolution
// ---------------------------------------------------------------------------

func (et *EntryTable) resolveWidths(totalWidth int) []int {
	n := len(et.columns)
	if n == 0 {
		return nil
	}

	widths := make([]int, n)

	sepOverhead := 0
	if et.showBorder && totalWidth >= 20 {
		sepOverhead = n - 1
	}
	available := totalWidth - sepOverhead
	if available < 0 {
		available = 0
	}

	remaining := available
	for i, col := range et.columns {
		if col.Sizing.Kind == sizingFixed {
			w := col.Sizing.Value
			if w > remaining {
				w = remaining
			}
			widths[i] = w
			remaining -= w
		}
	}

	fillCount := 0
	for _, col := range et.columns {
		if col.Sizing.Kind == sizingFill {
			fillCount++
		}
	}
	if fillCount > 0 && remaining > 0 {
		each := remaining / fillCount
		extra := remaining % fillCount
		filled := 0
		for i, col := range et.columns {
			if col.Sizing.Kind == sizingFill {
				w := each
				if filled < extra {
					w++
				}
				widths[i] = w
				filled++
			}
		}
	}

	return widths
}

// ---------------------------------------------------------------------------
// Filter helper
// ---------------------------------------------------------------------------

func (et *EntryTable) applyFilter(rows []Row) []Row {
	if et.filterFn == nil {
		if len(rows) == 0 {
			return nil
		}
		out := make([]Row, len(rows))
		copy(out, rows)
		return out
	}
	var out []Row
	for _, r := range rows {
		if et.filterFn(r) {
			out = append(out, r)
		}
	}
	return out
}

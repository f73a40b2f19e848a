package components

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DataPoint represents a single time-value observation.
type DataPoint struct {
	Time  time.Time
	Value float64
}

// HitRateGraphConfig holds configuration for a HitRateGraph.
type HitRateGraphConfig struct {
	ShowYAxis  bool          // show Y-axis labels (auto-hide if width < 20)
	ShowXAxis  bool          // show time labels at bottom (auto-hide if height < 5)
	YAxisWidth int           // width reserved for Y labels (default 6)
	MinY       *float64      // optional fixed Y minimum (nil = auto-scale)
	MaxY       *float64      // optional fixed Y maximum (nil = auto-scale)
	TimeWindow time.Duration // visible time window (default 5 minutes)
	Color      string        // hex color for the plotted line (default "#4CAF50")
}

// HitRateGraph renders a rolling ARC hit-rate percentage as a Braille-dot
// chart over a sliding time window. Cachemon only ever tracks one series
// (hit rate), so unlike a general-purpose time-series widget this has no
// per-series registration or legend -- just push a point and render.
type HitRateGraph struct {
	cfg    HitRateGraphConfig
	points []DataPoint
}

// NewHitRateGraph creates a HitRateGraph with the given configuration.
// Defaults are applied for zero-value fields.
func NewHitRateGraph(cfg HitRateGraphConfig) *HitRateGraph {
	if cfg.YAxisWidth <= 0 {
		cfg.YAxisWidth = 6
	}
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = 5 * time.Minute
	}
	if cfg.Color == "" {
		cfg.Color = "#4CAF50"
	}
	return &HitRateGraph{cfg: cfg}
}

// Push appends a single hit-rate observation at time t.
func (g *HitRateGraph) Push(t time.Time, hitRatePct float64) {
	g.points = append(g.points, DataPoint{Time: t, Value: hitRatePct})
}

// Render draws the graph into a string of the given cell dimensions.
// The output contains newline-separated lines with no trailing whitespace.
func (g *HitRateGraph) Render(width, height int) string {
	if width < 10 || height < 2 {
		return tooSmallMsg(width)
	}

	showYAxis := g.cfg.ShowYAxis
	showXAxis := g.cfg.ShowXAxis
	if height < 5 {
		showXAxis = false
	}
	if width < 20 {
		showYAxis = false
	}

	yAxisW := 0
	if showYAxis {
		yAxisW = g.cfg.YAxisWidth
	}
	chartW := width - yAxisW
	if chartW < 1 {
		chartW = 1
	}

	xAxisH := 0
	if showXAxis {
		xAxisH = 1
	}
	chartH := height - xAxisH
	if chartH < 1 {
		chartH = 1
	}

	now := g.latestTime()
	tMin := now.Add(-g.cfg.TimeWindow)
	tMax := now
	yMin, yMax := g.yRange(tMin, tMax)

	// Braille grid: each cell is 2 dots wide, 4 dots tall.
	dotsW := chartW * 2
	dotsH := chartH * 4
	grid := make([][]uint8, chartH)
	for r := range grid {
		grid[r] = make([]uint8, chartW)
	}

	tRange := tMax.Sub(tMin).Seconds()
	yRange := yMax - yMin

	for _, dp := range g.points {
		if dp.Time.Before(tMin) || dp.Time.After(tMax) {
			continue
		}

		var dotX int
		if tRange <= 0 {
			dotX = dotsW / 2
		} else {
			frac := dp.Time.Sub(tMin).Seconds() / tRange
			dotX = int(frac * float64(dotsW-1))
		}
		dotX = clampInt(dotX, 0, dotsW-1)

		var dotY int
		if yRange <= 0 {
			dotY = dotsH / 2
		} else {
			frac := (dp.Value - yMin) / yRange
			frac = clampFloat(frac, 0, 1)
			dotY = int((1 - frac) * float64(dotsH-1))
		}
		dotY = clampInt(dotY, 0, dotsH-1)

		cellCol := dotX / 2
		cellRow := dotY / 4
		offX := dotX % 2
		offY := dotY % 4
		if cellCol >= chartW {
			cellCol = chartW - 1
		}
		if cellRow >= chartH {
			cellRow = chartH - 1
		}

		grid[cellRow][cellCol] |= brailleBit(offX, offY)
	}

	var lines []string
	colorSeq := Color(g.cfg.Color)
	resetSeq := Reset()

	for r := 0; r < chartH; r++ {
		var sb strings.Builder
		if showYAxis {
			var val float64
			if chartH <= 1 {
				val = (yMin + yMax) / 2
			} else {
				val = yMax - (yMax-yMin)*float64(r)/float64(chartH-1)
			}
			sb.WriteString(PadLeft(formatSI(val), yAxisW-1))
			sb.WriteString(" ")
		}
		for c := 0; c < chartW; c++ {
			ch := rune(0x2800 + int(grid[r][c]))
			if grid[r][c] != 0 {
				sb.WriteString(colorSeq)
				sb.WriteRune(ch)
				sb.WriteString(resetSeq)
			} else {
				sb.WriteRune(ch)
			}
		}
		lines = append(lines, trimRight(sb.String()))
	}

	if showXAxis {
		lines = append(lines, g.renderXAxis(yAxisW, chartW))
	}

	return strings.Join(lines, "\n")
}

// latestTime returns the most recent timestamp pushed, or time.Now() if no
// data exists yet.
func (g *HitRateGraph) latestTime() time.Time {
	if len(g.points) == 0 {
		return time.Now()
	}
	latest := g.points[0].Time
	for _, dp := range g.points[1:] {
		if dp.Time.After(latest) {
			latest = dp.Time
		}
	}
	return latest
}

// yRange computes the Y-axis range from data within the time window,
// applying 10% padding and honoring fixed bounds. Cachemon always fixes
// 0-100 since hit rate is a percentage, but auto-scaling is kept for
// callers that don't.
func (g *HitRateGraph) yRange(tMin, tMax time.Time) (float64, float64) {
	if g.cfg.MinY != nil && g.cfg.MaxY != nil {
		return *g.cfg.MinY, *g.cfg.MaxY
	}

	lo := math.Inf(1)
	hi := math.Inf(-1)
	count := 0
	for _, dp := range g.points {
		if dp.Time.Before(tMin) || dp.Time.After(tMax) {
			continue
		}
		if dp.Value < lo {
			lo = dp.Value
		}
		if dp.Value > hi {
			hi = dp.Value
		}
		count++
	}

	if count == 0 {
		lo, hi = 0, 1
	} else if lo == hi {
		if lo == 0 {
			lo, hi = 0, 1
		} else {
			lo -= math.Abs(lo) * 0.1
			hi += math.Abs(hi) * 0.1
		}
	} else {
		span := hi - lo
		lo -= span * 0.1
		hi += span * 0.1
	}

	if g.cfg.MinY != nil {
		lo = *g.cfg.MinY
	}
	if g.cfg.MaxY != nil {
		hi = *g.cfg.MaxY
	}
	return lo, hi
}

// renderXAxis builds the X-axis label line with relative time markers.
func (g *HitRateGraph) renderXAxis(yAxisW, chartW int) string {
	if chartW < 3 {
		return ""
	}

	window := g.cfg.TimeWindow
	labels := []struct {
		text string
		frac float64
	}{
		{text: formatDuration(window), frac: 0.0},
		{text: "now", frac: 1.0},
	}
	if chartW >= 30 {
		labels = []struct {
			text string
			frac float64
		}{
			{text: formatDuration(window), frac: 0.0},
			{text: formatDuration(window * 3 / 4), frac: 0.25},
			{text: formatDuration(window / 2), frac: 0.5},
			{text: formatDuration(window / 4), frac: 0.75},
			{text: "now", frac: 1.0},
		}
	} else if chartW >= 15 {
		labels = []struct {
			text string
			frac float64
		}{
			{text: formatDuration(window), frac: 0.0},
			{text: formatDuration(window / 2), frac: 0.5},
			{text: "now", frac: 1.0},
		}
	}

	totalW := yAxisW + chartW
	axis := make([]byte, totalW)
	for i := range axis {
		axis[i] = ' '
	}

	for _, lbl := range labels {
		pos := yAxisW + int(lbl.frac*float64(chartW-1))
		start := pos - len(lbl.text)/2
		if start < yAxisW {
			start = yAxisW
		}
		end := start + len(lbl.text)
		if end > totalW {
			start = totalW - len(lbl.text)
			if start < yAxisW {
				start = yAxisW
			}
			end = start + len(lbl.text)
		}
		if end > totalW {
			end = totalW
		}
		copy(axis[start:end], lbl.text)
	}

	return trimRight(string(axis))
}

// brailleBit returns the bitmask for a dot at offset (offX, offY) within a
// Braille cell. offX is 0 (left) or 1 (right). offY is 0..3 (top to bottom).
func brailleBit(offX, offY int) uint8 {
	leftBits := [4]uint8{0x01, 0x02, 0x04, 0x40}
	rightBits := [4]uint8{0x08, 0x10, 0x20, 0x80}
	if offY < 0 || offY > 3 {
		return 0
	}
	if offX == 0 {
		return leftBits[offY]
	}
	return rightBits[offY]
}

// formatSI formats a float with SI suffixes: K, M, G, T.
func formatSI(v float64) string {
	negative := v < 0
	abs := math.Abs(v)
	prefix := ""
	if negative {
		prefix = "-"
	}
	switch {
	case abs >= 1e12:
		return prefix + formatSIValue(abs/1e12) + "T"
	case abs >= 1e9:
		return prefix + formatSIValue(abs/1e9) + "G"
	case abs >= 1e6:
		return prefix + formatSIValue(abs/1e6) + "M"
	case abs >= 1e3:
		return prefix + formatSIValue(abs/1e3) + "K"
	default:
		if abs == math.Trunc(abs) {
			return fmt.Sprintf("%s%d", prefix, int(abs))
		}
		return fmt.Sprintf("%s%.1f", prefix, abs)
	}
}

func formatSIValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// formatDuration formats a duration as a relative time label like "-5m" or "-30s".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "now"
	}
	if d >= time.Hour {
		return fmt.Sprintf("-%dh", int(d.Hours()))
	}
	if d >= time.Minute {
		return fmt.Sprintf("-%dm", int(d.Minutes()))
	}
	s := int(d.Seconds())
	if s <= 0 {
		s = 1
	}
	return fmt.Sprintf("-%ds", s)
}

// tooSmallMsg returns a truncated "too small" message for tiny viewports.
func tooSmallMsg(width int) string {
	msg := "too small"
	if width < len(msg) {
		return msg[:width]
	}
	return msg
}

func trimRight(s string) string {
	return strings.TrimRight(s, " \t")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

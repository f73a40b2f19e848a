package components

import (
	"fmt"
	"math"
	"strings"
)

// Block characters for sub-cell precision (8 levels per cell).
var gaugeBlocks = [9]rune{
	' ', // 0/8 empty
	'▏', // 1/8
	'▎', // 2/8
	'▍', // 3/8
	'▌', // 4/8
	'▋', // 5/8
	'▊', // 6/8
	'▉', // 7/8
	'█', // 8/8
}

// CapacityGaugeStyle configures the appearance of the stacked mem/disk
// capacity bars rendered in the "arc / disk" stats panel.
type CapacityGaugeStyle struct {
	LabelWidth        int     // fixed width for the label column (0 = size to longest label)
	FilledColor       string  // hex color for filled portion (default "#4CAF50")
	EmptyColor        string  // hex color for empty portion (default "#333333")
	WarningThreshold  float64 // usage ratio (0-1) where color changes to warning
	CriticalThreshold float64 // usage ratio (0-1) where color changes to critical
	WarningColor      string  // hex color for warning (default "#FF9800")
	CriticalColor     string  // hex color for critical (default "#F44336")
}

// CapacityReading is one row of a capacity gauge: bytes used out of bytes
// available, labeled for display (e.g. "mem", "disk").
type CapacityReading struct {
	Label    string
	Value    float64
	MaxValue float64
}

// CapacityGauge renders byte-capacity usage as horizontal bars with
// sub-cell precision, one row per CapacityReading, with color thresholds
// for warning/critical usage levels.
type CapacityGauge struct {
	style CapacityGaugeStyle
}

// DefaultCapacityGaugeStyle returns the thresholds cachemon uses for its
// ARC-memory and disk-usage rows: amber past 70% full, red past 90%.
func DefaultCapacityGaugeStyle() CapacityGaugeStyle {
	return CapacityGaugeStyle{
		FilledColor:       "#4CAF50",
		EmptyColor:        "#333333",
		WarningThreshold:  0.7,
		CriticalThreshold: 0.9,
		WarningColor:      "#FF9800",
		CriticalColor:     "#F44336",
	}
}

// NewCapacityGauge creates a CapacityGauge with the given style.
func NewCapacityGauge(style CapacityGaugeStyle) *CapacityGauge {
	return &CapacityGauge{style: style}
}

// Render draws each reading as a labeled "label [bar] NN%" line of the
// given bar width, stacked vertically with labels aligned to the widest
// one.
func (g *CapacityGauge) Render(readings []CapacityReading, width int) string {
	if len(readings) == 0 {
		return ""
	}
	if width <= 0 {
		width = 20
	}

	labelWidth := g.style.LabelWidth
	if labelWidth <= 0 {
		for _, r := range readings {
			if len(r.Label)+1 > labelWidth {
				labelWidth = len(r.Label) + 1
			}
		}
	}

	lines := make([]string, 0, len(readings))
	for _, r := range readings {
		lines = append(lines, g.renderBar(r, labelWidth, width))
	}
	return strings.Join(lines, "\n")
}

func (g *CapacityGauge) renderBar(r CapacityReading, labelWidth, barWidth int) string {
	ratio := 0.0
	if r.MaxValue > 0 {
		ratio = r.Value / r.MaxValue
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	fillColor := nonEmpty(g.style.FilledColor, "#4CAF50")
	if g.style.WarningThreshold > 0 && ratio >= g.style.WarningThreshold {
		fillColor = nonEmpty(g.style.WarningColor, "#FF9800")
	}
	if g.style.CriticalThreshold > 0 && ratio >= g.style.CriticalThreshold {
		fillColor = nonEmpty(g.style.CriticalColor, "#F44336")
	}

	var b strings.Builder
	b.WriteString(PadRight(r.Label, labelWidth))
	b.WriteString(gaugeBar(ratio, barWidth, fillColor, g.style.EmptyColor))
	b.WriteString(fmt.Sprintf(" %d%%", int(math.Round(ratio*100))))
	return b.String()
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// gaugeBar builds the ANSI-colored bar string with sub-cell (1/8 block)
// precision: ratio of width*8 total units are filled.
func gaugeBar(ratio float64, width int, fillColor, emptyColor string) string {
	totalUnits := width * 8
	filledUnits := int(math.Round(ratio * float64(totalUnits)))
	if filledUnits < 0 {
		filledUnits = 0
	}
	if filledUnits > totalUnits {
		filledUnits = totalUnits
	}

	fullCells := filledUnits / 8
	partialEighths := filledUnits % 8
	emptyCells := width - fullCells
	if partialEighths > 0 {
		emptyCells--
	}
	if emptyCells < 0 {
		emptyCells = 0
	}

	fgFill := Color(fillColor)
	bgEmpty := BgColor(emptyColor)
	fgEmpty := Color(emptyColor)
	reset := Reset()

	var b strings.Builder
	if fullCells > 0 {
		b.WriteString(fgFill)
		b.WriteString(bgEmpty)
		b.WriteString(strings.Repeat(string(gaugeBlocks[8]), fullCells))
		b.WriteString(reset)
	}
	if partialEighths > 0 {
		b.WriteString(fgFill)
		b.WriteString(bgEmpty)
		b.WriteRune(gaugeBlocks[partialEighths])
		b.WriteString(reset)
	}
	if emptyCells > 0 {
		b.WriteString(fgEmpty)
		b.WriteString(strings.Repeat(" ", emptyCells))
		b.WriteString(reset)
	}
	return b.String()
}

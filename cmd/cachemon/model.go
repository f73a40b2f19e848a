package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/rfbcache/cachecore"
	"gitlab.com/tinyland/lab/rfbcache/coordinator"
	"gitlab.com/tinyland/lab/rfbcache/persist"
	"gitlab.com/tinyland/lab/rfbcache/pkg/app"
	"gitlab.com/tinyland/lab/rfbcache/pkg/components"
	"gitlab.com/tinyland/lab/rfbcache/termview"
)

const (
	zoneTable = "cachemon-table"
	zoneThumb = "cachemon-thumb"
)

// model is the root bubbletea model for cachemon: one scrollable table of
// persistent-cache entries, a thumbnail preview of the selected entry, and
// a rolling hit-rate graph. There is no widget grid or focus-cycling here
// (unlike the teacher's multi-widget dashboard) because a single-purpose
// monitor only ever has one table to browse.
type model struct {
	store       *persist.Store
	coord       *coordinator.Coordinator
	refresh     time.Duration
	caps        termview.Capabilities
	memCapacity int64

	table       *components.EntryTable
	hitGraph    *components.HitRateGraph
	filterInput textinput.Model
	filtering   bool

	width, height int
	arcStats      cachecore.Stats
	diskFree      uint64
	diskTotal     uint64
	thumbnail     string
	statusMsg     string
	quitting      bool
}

func newModel(store *persist.Store, coord *coordinator.Coordinator, refresh time.Duration, memCapacity int64) *model {
	zone.NewGlobal()

	table := components.NewEntryTable(components.EntryTableConfig{
		Columns: []components.EntryColumn{
			{Title: "Hash", Sizing: components.SizingFixed(14), Align: components.AlignLeft},
			{Title: "Size", Sizing: components.SizingFixed(9), Align: components.AlignRight},
			{Title: "Quality", Sizing: components.SizingFixed(10), Align: components.AlignLeft},
			{Title: "Bytes", Sizing: components.SizingFill(), Align: components.AlignRight},
		},
		ShowHeader: true,
		ShowBorder: true,
		HeaderStyle: components.EntryHeaderStyle{
			Bold:    true,
			FgColor: "#7C3AED",
		},
		RowStyle: components.EntryRowStyle{
			SelectedBgColor: "#312244",
		},
	})

	graph := components.NewHitRateGraph(components.HitRateGraphConfig{
		ShowYAxis:  true,
		ShowXAxis:  true,
		TimeWindow: 5 * time.Minute,
		MinY:       floatPtr(0),
		MaxY:       floatPtr(100),
	})

	filterInput := textinput.New()
	filterInput.Placeholder = "hex prefix"
	filterInput.CharLimit = 32
	filterInput.Prompt = "/"

	return &model{
		store:       store,
		coord:       coord,
		refresh:     refresh,
		caps:        termview.Detect(),
		memCapacity: memCapacity,
		table:       table,
		hitGraph:    graph,
		filterInput: filterInput,
		thumbnail:   "(no entry selected)",
	}
}

func floatPtr(v float64) *float64 { return &v }

func (m *model) Init() tea.Cmd {
	m.refreshStats()
	return app.TickCmd(m.refresh)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter":
				m.filtering = false
				m.filterInput.Blur()
				m.applyFilter()
			case "esc":
				m.filtering = false
				m.filterInput.SetValue("")
				m.filterInput.Blur()
				m.applyFilter()
			default:
				var cmd tea.Cmd
				m.filterInput, cmd = m.filterInput.Update(msg)
				m.applyFilter()
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			m.table.SelectPrev()
			m.updateThumbnail()
		case "down", "j":
			m.table.SelectNext()
			m.updateThumbnail()
		case "/":
			m.filtering = true
			return m, m.filterInput.Focus()
		}
		return m, nil

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		if zone.Get(zoneTable).InBounds(msg) {
			m.table.SelectNext()
			m.updateThumbnail()
		}
		return m, nil

	case app.TickEvent:
		m.refreshStats()
		return m, app.TickCmd(m.refresh)
	}
	return m, nil
}

// refreshStats re-polls the persistent store's ARC and disk statistics and
// rebuilds the entry table, the way app.DataFetchCmd's callers would poll a
// collector -- done synchronously here since persist.Store's accessors are
// in-memory reads, not network calls.
func (m *model) refreshStats() {
	m.arcStats = m.store.Stats()
	if free, total, err := m.store.DiskStats(); err == nil {
		m.diskFree, m.diskTotal = free, total
	}

	entries := m.store.Snapshot()
	rows := make([]components.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, components.Row{
			ID: hex.EncodeToString(e.Hash[:]),
			Cells: []string{
				hex.EncodeToString(e.Hash[:6]),
				fmt.Sprintf("%dx%d", e.Width, e.Height),
				qualityLabel(e.Quality),
				fmt.Sprintf("%d", e.PayloadSize),
			},
		})
	}
	m.table.SetRows(rows)
	m.updateThumbnail()

	hitRatio := 0.0
	if total := m.arcStats.Hits + m.arcStats.Misses; total > 0 {
		hitRatio = 100 * float64(m.arcStats.Hits) / float64(total)
	}
	m.hitGraph.Push(time.Now(), hitRatio)

	if m.coord != nil {
		m.statusMsg = "coordinator: " + m.coord.Role().String()
	} else {
		m.statusMsg = "coordinator: not joined (read-only snapshot)"
	}
}

// updateThumbnail renders the currently selected row's entry, hydrating it
// from the persistent store if it is not already memory-resident.
func (m *model) updateThumbnail() {
	row := m.table.SelectedRow()
	if row == nil {
		m.thumbnail = "(no entry selected)"
		return
	}
	hashBytes, err := hex.DecodeString(row.ID)
	if err != nil || len(hashBytes) != 16 {
		m.thumbnail = "(malformed row id)"
		return
	}
	var hash [16]byte
	copy(hash[:], hashBytes)

	idx, ok := m.store.IndexEntryFor(hash)
	if !ok {
		m.thumbnail = "(entry evicted since last refresh)"
		return
	}
	entry, ok := m.store.Lookup(hash, idx.Width, idx.Height)
	if !ok {
		m.thumbnail = "(failed to hydrate from disk)"
		return
	}
	img, err := termview.EntryToImage(entry)
	if err != nil {
		m.thumbnail = err.Error()
		return
	}
	out, err := termview.Render(img, m.caps, 32, 16)
	if err != nil {
		m.thumbnail = err.Error()
		return
	}
	m.thumbnail = out
}

// applyFilter restricts the table to rows whose hash starts with the
// current filter text, or clears the filter when the text is empty.
func (m *model) applyFilter() {
	prefix := strings.ToLower(strings.TrimSpace(m.filterInput.Value()))
	if prefix == "" {
		m.table.SetFilter(nil)
		m.updateThumbnail()
		return
	}
	m.table.SetFilter(func(r components.Row) bool {
		return strings.HasPrefix(r.ID, prefix)
	})
	m.updateThumbnail()
}

func qualityLabel(q cachecore.QualityCode) string {
	switch q {
	case cachecore.QualityLossy8:
		return "lossy/8"
	case cachecore.QualityLossy16:
		return "lossy/16"
	case cachecore.QualityLossy24Or32:
		return "lossy/32"
	case cachecore.QualityLossless8:
		return "lossless/8"
	case cachecore.QualityLossless16:
		return "lossless/16"
	case cachecore.QualityLossless24Or32:
		return "lossless/32"
	default:
		return "unknown"
	}
}

func (m *model) View() string {
	if m.quitting {
		return ""
	}
	width, height := m.width, m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 32
	}

	leftWidth := width * 3 / 5
	rightWidth := width - leftWidth - 1

	tableBox := components.RenderBox(m.table.Render(leftWidth-2, height-8), leftWidth, height-5, components.BoxStyle{
		Border: components.BorderRounded,
		Title:  "persistent cache entries",
	})
	tableBox = zone.Mark(zoneTable, tableBox)

	thumbBox := components.RenderBox(m.thumbnail, rightWidth, height/2, components.BoxStyle{
		Border: components.BorderRounded,
		Title:  "selected entry",
	})
	thumbBox = zone.Mark(zoneThumb, thumbBox)

	statsBox := components.RenderBox(m.renderStats(rightWidth-2), rightWidth, height-5-(height/2), components.BoxStyle{
		Border: components.BorderRounded,
		Title:  "arc / disk",
	})

	right := lipgloss.JoinVertical(lipgloss.Left, thumbBox, statsBox)
	main := lipgloss.JoinHorizontal(lipgloss.Top, tableBox, right)

	graphBox := components.RenderBox(m.hitGraph.Render(width-2, 6), width, 8, components.BoxStyle{
		Border: components.BorderRounded,
		Title:  "hit rate",
	})

	statusText := m.statusMsg + "   q:quit  up/down:select  /:filter"
	if m.filtering {
		statusText = m.filterInput.View()
	}
	status := components.Dim(components.PadRight(statusText, width))

	out := lipgloss.JoinVertical(lipgloss.Left, main, graphBox, status)
	return zone.Scan(out)
}

func (m *model) renderStats(width int) string {
	barWidth := width - 14
	if barWidth < 4 {
		barWidth = 4
	}
	gauge := components.NewCapacityGauge(components.DefaultCapacityGaugeStyle())
	diskUsed := int64(m.diskTotal) - int64(m.diskFree)
	gaugeLines := gauge.Render([]components.CapacityReading{
		{Label: "mem", Value: float64(m.arcStats.Bytes), MaxValue: float64(int64OrOne(m.memCapacity))},
		{Label: "disk", Value: float64(diskUsed), MaxValue: float64(diskOrOne(m.diskTotal))},
	}, barWidth)

	return fmt.Sprintf(
		"entries: %d\nbytes:   %d\nhits:    %d\nmisses:  %d\nevicts:  %d\nT1/T2:   %d/%d\nB1/B2:   %d/%d\nP:       %.2f\n\n%s",
		m.arcStats.Entries, m.arcStats.Bytes,
		m.arcStats.Hits, m.arcStats.Misses, m.arcStats.Evictions,
		m.arcStats.T1Size, m.arcStats.T2Size, m.arcStats.B1Size, m.arcStats.B2Size,
		m.arcStats.P,
		gaugeLines,
	)
}

func diskOrOne(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}

func int64OrOne(v int64) int64 {
	if v <= 0 {
		return 1
	}
	return v
}

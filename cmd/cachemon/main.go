// cachemon is a read-only terminal dashboard for an rfbcache persistent
// cache directory: disk/ARC statistics, the live index, and a rendered
// thumbnail of the selected entry's canonical pixels.
//
// Usage:
//
//	cachemon [flags]
//
// Flags:
//
//	-config string    Path to a TOML configuration file (default: standard search path)
//	-dir string       Override the persistent cache directory from config
//	-refresh duration How often to re-poll statistics (default 2s)
//	-no-coordinator   Do not join the multi-viewer coordinator; read the index as loaded at startup
//	-verbose          Enable debug logging to stderr
//	-version          Print version and exit
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/rfbcache/config"
	"gitlab.com/tinyland/lab/rfbcache/coordinator"
	"gitlab.com/tinyland/lab/rfbcache/persist"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to a TOML configuration file")
		dirOverride   = flag.String("dir", "", "Override the persistent cache directory from config")
		refresh       = flag.Duration("refresh", 2*time.Second, "How often to re-poll statistics")
		noCoordinator = flag.Bool("no-coordinator", false, "Do not join the multi-viewer coordinator")
		verbose       = flag.Bool("verbose", false, "Enable debug logging to stderr")
		showVersion   = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("cachemon %s (%s)\n", version, commit)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cachemon: failed to load config: %v\n", err)
		os.Exit(1)
	}

	dir := cfg.Persistent.Directory
	if *dirOverride != "" {
		dir = *dirOverride
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "cachemon: cannot create persistent directory %s: %v\n", dir, err)
		os.Exit(1)
	}

	store, err := persist.Open(persist.Config{
		Directory:           dir,
		MemoryCapacityBytes: cfg.Persistent.MemoryBytes(),
		DiskCapacityBytes:   cfg.Persistent.DiskBytes(),
		ShardTargetBytes:    cfg.Persistent.ShardBytes(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cachemon: failed to open persistent store at %s: %v\n", dir, err)
		os.Exit(1)
	}
	defer store.Close()

	var coord *coordinator.Coordinator
	if !*noCoordinator && cfg.Persistent.Coordinate {
		coord, err = coordinator.Start(coordinator.Config{Directory: dir}, store, logger)
		if err != nil {
			logger.Warn("coordinator unavailable, showing index as loaded at startup", "error", err)
			coord = nil
		} else {
			defer coord.Close()
		}
	}

	m := newModel(store, coord, *refresh, cfg.Persistent.MemoryBytes())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		logger.Error("cachemon exited with an error", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

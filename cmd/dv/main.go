// Command dv is a live preview for flowchart diagrams: a terminal editor
// with a pannable, zoomable preview, a browser preview server, and headless
// export.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/diagram_viewer/pkg/config"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/export"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/loader"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/preview"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/render"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/store"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/surface"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/ui"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/updater"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/viewport"
	"github.com/Dicklesworthstone/diagram_viewer/pkg/watcher"
)

const version = "0.1.0"

// isTerminal is swapped out in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

type options struct {
	configPath string
	serve      bool
	exportPath string
	robotView  bool
	width      float64
	height     float64
	zoom       float64
	theme      string
	renderer   string
	logPath    string
	port       int
	noOpen     bool
	poll       bool
	version    bool
	update     bool
	path       string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("dv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/dv/config.yaml)")
	fs.BoolVar(&o.serve, "serve", false, "Run the browser preview server")
	fs.StringVar(&o.exportPath, "export", "", "Render headlessly to FILE (.png, .svg or .mmd)")
	fs.BoolVar(&o.robotView, "robot-view", false, "Print the centered viewport state as JSON")
	fs.Float64Var(&o.width, "width", 1024, "Container width for --robot-view")
	fs.Float64Var(&o.height, "height", 768, "Container height for --robot-view")
	fs.Float64Var(&o.zoom, "zoom", 1, "Zoom for --robot-view")
	fs.StringVar(&o.theme, "theme", "", "Theme: dark or light")
	fs.StringVar(&o.renderer, "renderer", "", "Renderer: builtin or exec")
	fs.StringVar(&o.logPath, "log", "", "Write TUI logs to FILE")
	fs.IntVar(&o.port, "port", -1, "Preview server port (0 picks a free port)")
	fs.BoolVar(&o.noOpen, "no-open", false, "Do not open a browser in --serve mode")
	fs.BoolVar(&o.poll, "poll", false, "Poll the source file instead of using file system events")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.BoolVar(&o.update, "check-update", false, "Check for a newer release and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: dv [options] [file.mmd | file.md | -]")
		fmt.Fprintln(stderr, "\nLive preview for flowchart diagrams.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 1 {
		return nil, fmt.Errorf("expected at most one file, got %d", fs.NArg())
	}
	o.path = fs.Arg(0)
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "dv version %s\n", version)
		return nil
	}
	if opts.update {
		tag, url, err := updater.CheckForUpdates(context.Background(), version)
		if err != nil {
			return fmt.Errorf("check for updates: %w", err)
		}
		if tag == "" {
			fmt.Fprintf(stdout, "dv %s is up to date\n", version)
			return nil
		}
		fmt.Fprintf(stdout, "dv %s is available (you have %s): %s\n", tag, version, url)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	tui := !opts.serve && opts.exportPath == "" && !opts.robotView
	if tui && !isTerminal() {
		return errors.New("not a terminal; use --serve, --export or --robot-view")
	}

	logger := log.New(stderr, "dv: ", log.LstdFlags)
	if tui {
		logger, err = tuiLogger(opts.logPath)
		if err != nil {
			return err
		}
	}

	db := openStore(cfg, logger)
	if db != nil {
		defer db.Close()
	}
	if opts.theme == "" && db != nil {
		if name, err := db.Setting(store.SettingTheme); err == nil {
			if _, terr := render.ThemeByName(name); terr == nil {
				cfg.Theme = name
			}
		}
	}

	source, sourcePath, err := resolveSource(opts.path, db)
	if err != nil {
		return err
	}

	switch {
	case opts.robotView:
		return robotView(cfg, opts, source, stdout)
	case opts.exportPath != "":
		return exportFile(cfg, source, opts.exportPath, stdout)
	case opts.serve:
		return serve(cfg, source, sourcePath, db, opts.poll, logger)
	default:
		return runTUI(cfg, source, sourcePath, db, opts.poll, logger)
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.theme != "" {
		cfg.Theme = opts.theme
	}
	if opts.renderer != "" {
		cfg.Render.Renderer = opts.renderer
	}
	if opts.port >= 0 {
		cfg.Preview.Port = opts.port
	}
	if opts.noOpen {
		cfg.Preview.OpenBrowser = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, nil
}

// tuiLogger keeps log output off the terminal the TUI draws on.
func tuiLogger(path string) (*log.Logger, error) {
	if path == "" {
		log.SetOutput(io.Discard)
		return log.New(io.Discard, "", 0), nil
	}
	// LogToFile redirects the standard logger as well.
	if _, err := tea.LogToFile(path, "dv"); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return log.Default(), nil
}

// openStore opens persistence. Failures are logged and persistence is
// disabled rather than refusing to start.
func openStore(cfg config.Config, logger *log.Logger) *store.DB {
	if cfg.Store.Path == "" {
		return nil
	}
	db, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		logger.Printf("persistence disabled: %v", err)
		return nil
	}
	return db
}

// resolveSource picks the diagram to show: the named file, a diagram file
// in the working directory, the saved scratch document, or the default.
// sourcePath is empty when the scratch document is being edited.
func resolveSource(path string, db *store.DB) (source, sourcePath string, err error) {
	if path != "" {
		source, err = loader.LoadSource(path)
		if err != nil {
			return "", "", err
		}
		if path == loader.Stdin {
			return source, "", nil
		}
		return source, path, nil
	}

	if found, err := loader.FindSource(""); err == nil {
		source, err = loader.LoadSource(found)
		if err != nil {
			return "", "", err
		}
		return source, found, nil
	}

	if db != nil {
		if doc, err := db.LoadDocument(store.ScratchKey); err == nil && doc.Source != "" {
			return doc.Source, "", nil
		}
	}
	return loader.DefaultSource, "", nil
}

func newSession(cfg config.Config, logger *log.Logger, extra ...preview.Option) (*preview.Session, error) {
	renderer, err := render.New(cfg.RenderOptions())
	if err != nil {
		return nil, err
	}
	theme, err := render.ThemeByName(cfg.Theme)
	if err != nil {
		return nil, err
	}
	opts := []preview.Option{
		preview.WithRenderer(renderer),
		preview.WithTheme(theme),
		preview.WithLimits(cfg.Limits()),
		preview.WithDebounce(cfg.Render.Debounce),
		preview.WithCenterDelay(cfg.Viewport.CenterDelay),
		preview.WithLogger(logger),
	}
	return preview.New(append(opts, extra...)...), nil
}

func robotView(cfg config.Config, opts *options, source string, stdout io.Writer) error {
	s, err := newSession(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer s.Close()

	s.SetContainer(viewport.Size{Width: opts.width, Height: opts.height})
	s.SetSource(source)
	if _, err := s.RenderNow(context.Background()); err != nil {
		return err
	}
	s.Controller().SetZoom(opts.zoom, true)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s.View())
}

func exportFile(cfg config.Config, source, path string, stdout io.Writer) error {
	format, err := export.FormatFromPath(path)
	if err != nil {
		return err
	}
	if format == export.FormatSource {
		if err := export.Source(path, source); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Exported %s\n", path)
		return nil
	}

	s, err := newSession(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		return err
	}
	defer s.Close()
	s.SetSource(source)
	res, err := s.RenderNow(context.Background())
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, res, s.Theme(), export.DefaultPNGScale); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Exported %s\n", path)
	return nil
}

func serve(cfg config.Config, source, sourcePath string, db *store.DB, poll bool, logger *log.Logger) error {
	s, err := newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	s.SetSource(source)
	if _, err := s.RenderNow(context.Background()); err != nil {
		logger.Printf("initial render: %v", err)
	}

	var serverOpts []export.PreviewOption
	serverOpts = append(serverOpts, export.WithPreviewLogger(logger))
	if db != nil && sourcePath == "" {
		serverOpts = append(serverOpts, export.WithSourceHook(func(text string) {
			if err := db.SaveDocument(store.ScratchKey, text); err != nil {
				logger.Printf("save scratch document: %v", err)
			}
		}))
	}
	server := export.NewPreviewServerWithConfig(s, export.PreviewConfig{
		Port:        cfg.Preview.Port,
		OpenBrowser: cfg.Preview.OpenBrowser,
		WheelStep:   cfg.Viewport.WheelStep,
	}, serverOpts...)
	if err := server.Listen(); err != nil {
		return err
	}
	if cfg.Preview.OpenBrowser {
		server.OpenBrowserAfter(300 * time.Millisecond)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx)
	})
	if sourcePath != "" {
		w, err := newFileWatcher(sourcePath, poll, logger, func(text string, err error) {
			if err != nil {
				logger.Printf("reload %s: %v", sourcePath, err)
				return
			}
			s.SetSource(text)
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}

func runTUI(cfg config.Config, source, sourcePath string, db *store.DB, poll bool, logger *log.Logger) error {
	raster := surface.NewRaster(1, 1)
	s, err := newSession(cfg, logger, preview.WithSurface(raster))
	if err != nil {
		return err
	}
	defer s.Close()

	mopts := ui.Options{
		Session:    s,
		Raster:     raster,
		Source:     source,
		WheelStep:  cfg.Viewport.WheelStep,
		SourcePath: sourcePath,
		Logger:     logger,
	}
	if db != nil {
		mopts.Store = db
	}
	m := ui.NewModel(mopts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if sourcePath != "" {
		w, err := newFileWatcher(sourcePath, poll, logger, func(text string, err error) {
			p.Send(ui.FileChangedMsg{Source: text, Err: err})
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dv: %w", err)
	}
	return nil
}

// newFileWatcher reloads path on change and hands the text to onLoad.
func newFileWatcher(path string, poll bool, logger *log.Logger, onLoad func(string, error)) (*watcher.Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return watcher.NewWatcher(abs,
		watcher.WithPolling(poll),
		watcher.WithOnChange(func() {
			onLoad(loader.LoadSource(abs))
		}),
		watcher.WithOnError(func(err error) {
			logger.Printf("watch %s: %v", abs, err)
		}),
	)
}

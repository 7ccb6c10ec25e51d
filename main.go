package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/term"

	"straf/audio"
	"straf/beep"
	"straf/config"
	"straf/doctor"
	"straf/log"
	"straf/metrics"
	"straf/overlay"
	"straf/penalty"
	"straf/pipeline"
	"straf/shutdown"
	"straf/transcriber"
	"straf/tray"
)

var version = "dev"

type flags struct {
	configPath string
	logPath    string
	device     string
	profile    string
	metrics    string
	setup      bool
	tui        bool
	test       bool
	doctor     bool
	version    bool
	gui        bool
	console    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "config file path (default: STRAF_CONFIG_PATH, then the per-user config)")
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.StringVar(&f.profile, "profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.StringVar(&f.metrics, "metrics", "", "Serve Prometheus metrics on this address (overrides metrics.listen)")
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device (otherwise uses the configured one)")
	flag.BoolVar(&f.tui, "tui", true, "Show the terminal UI when the tui sink is configured and stdout is a terminal")
	flag.BoolVar(&f.test, "test", false, "Test mode (headless, stdin-driven)")
	flag.BoolVar(&f.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.BoolVar(&f.gui, "gui", false, "Show penalties in a floating window (needs -tags gui)")
	flag.BoolVar(&f.console, "console", false, "Mirror diagnostics to stderr")
	flag.Parse()
	return f
}

var (
	quitCh   = make(chan struct{})
	quitOnce sync.Once
)

// requestQuit asks the running session to shut down. Safe to call from any
// goroutine, any number of times.
func requestQuit() {
	quitOnce.Do(func() { close(quitCh) })
}

var (
	activeDriver atomic.Pointer[pipeline.Driver]
	pauseWanted  atomic.Bool
)

// setPaused is the pause hook of the tray and the GUI. It may run before
// the driver exists; the driver picks the value up when it is created.
func setPaused(p bool) {
	pauseWanted.Store(p)
	if d := activeDriver.Load(); d != nil {
		d.SetPaused(p)
	}
}

func main() {
	f := parseFlags()

	if f.version {
		fmt.Printf("straf %s\n", version)
		return
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if f.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", f.profile)
			if err := http.ListenAndServe(f.profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	cfgPath, err := config.ResolvePath(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if f.doctor {
		os.Exit(doctor.Run(cfgPath))
	}
	if f.test {
		os.Exit(runTestMode(cfgPath))
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applyFlags(cfg, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logOpts := log.Options{Level: cfg.Logging.Level}
	if f.console {
		logOpts.Console = os.Stderr
	}
	if err := log.Init(logOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.Infof("straf %s starting, config %s", version, displayPath(cfgPath))

	code := start(cfg, f)
	log.Close()
	os.Exit(code)
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func displayPath(p string) string {
	if p == "" {
		return "(built-in sample)"
	}
	return p
}

// applyFlags folds the command line into the loaded configuration.
func applyFlags(cfg *config.Config, f flags) error {
	if f.device != "" {
		cfg.Audio.Source = audio.KindDevice
		cfg.Audio.Device = f.device
	} else if f.setup {
		ctx, err := audio.NewContext()
		if err != nil {
			return fmt.Errorf("initializing audio: %w", err)
		}
		dev, err := audio.SelectDevice(ctx)
		ctx.Close()
		if err != nil {
			return err
		}
		cfg.Audio.Source = audio.KindDevice
		cfg.Audio.Device = dev.Name
	}

	if f.metrics != "" {
		cfg.Metrics.Listen = f.metrics
	}

	sinks := slices.Clone(cfg.Overlay.Sinks)
	if !f.tui || !term.IsTerminal(int(os.Stdout.Fd())) || f.console {
		sinks = slices.DeleteFunc(sinks, func(s string) bool { return s == "tui" })
	}
	if f.gui {
		// the GUI brings its own tray icon
		sinks = slices.DeleteFunc(sinks, func(s string) bool { return s == "tray" })
		if !slices.Contains(sinks, "gui") {
			sinks = append(sinks, "gui")
		}
	}
	if len(sinks) == 0 {
		sinks = []string{"log"}
	}
	cfg.Overlay.Sinks = sinks
	return nil
}

// start hands the main goroutine to whichever UI toolkit needs it and runs
// the session next to it.
func start(cfg *config.Config, f flags) int {
	switch {
	case f.gui:
		return runGUI(func() int { return serve(cfg) })
	case slices.Contains(cfg.Overlay.Sinks, "tray"):
		result := make(chan int, 1)
		tray.OnPause(setPaused)
		tray.Run(func() {
			result <- serve(cfg)
			tray.Quit()
		})
		requestQuit()
		return <-result
	default:
		return serve(cfg)
	}
}

// serve runs one session until a signal, the tray, or the TUI asks it to
// stop. It returns the process exit code.
func serve(cfg *config.Config) int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()
	go func() {
		select {
		case <-quitCh:
		case <-tray.Done():
		case <-ctx.Done():
		}
		stop()
	}()

	mp, closeMetrics, err := meterProvider(ctx, cfg.Metrics.Listen)
	if err != nil {
		log.Errorf("metrics: %v", err)
		fmt.Fprintf(os.Stderr, "Error: metrics: %v\n", err)
		return 1
	}
	defer closeMetrics()
	m, err := metrics.New(mp)
	if err != nil {
		log.Errorf("metrics: %v", err)
		return 1
	}

	var sched atomic.Pointer[penalty.Scheduler]
	var tui *tuiSink
	snapshot := func() penalty.State {
		if s := sched.Load(); s != nil {
			return s.Snapshot()
		}
		return penalty.State{}
	}
	factories := map[string]overlay.Factory{
		"log": func() (overlay.Overlay, error) { return overlay.NewLog(), nil },
		"tray": func() (overlay.Overlay, error) {
			return overlay.NewAsync(tray.NewSink()), nil
		},
		"beep": func() (overlay.Overlay, error) { return beep.NewSink(), nil },
		"tui": func() (overlay.Overlay, error) {
			tui = newTUISink(snapshot, requestQuit)
			return tui, nil
		},
		"gui": newGUISink,
	}
	sink, err := overlay.Build(cfg.Overlay.Sinks, factories)
	if err != nil {
		log.Errorf("overlay: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := sink.Init(); err != nil {
		log.Errorf("overlay init: %v", err)
		fmt.Fprintf(os.Stderr, "Error: overlay: %v\n", err)
		return 1
	}
	defer sink.Close()

	var started atomic.Int64
	s := penalty.New(cfg.Scheduler(), sink,
		penalty.WithObserver(m),
		penalty.WithObserver(penalty.ObserverFunc(func(e penalty.Event) {
			if e.Outcome == penalty.OutcomeStarted {
				started.Add(1)
			}
		})))
	sched.Store(s)

	matcher := cfg.Matcher()
	if len(matcher.Words()) == 0 {
		log.Warn("vocabulary is empty, nothing will be detected")
	}

	source, err := cfg.Source()
	if err != nil {
		log.Errorf("audio: %v", err)
		fmt.Fprintf(os.Stderr, "Error: audio: %v\n", err)
		return 1
	}
	stt, err := transcriber.New(cfg.Transcriber())
	if err != nil {
		log.Errorf("transcriber: %v", err)
		fmt.Fprintf(os.Stderr, "Error: transcriber: %v\n", err)
		return 1
	}

	opts := []pipeline.Option{pipeline.WithSink(sink), pipeline.WithRecorder(m)}
	if tui != nil {
		tui.post(modeLineMsg{Text: modeLineText(source, stt, len(matcher.Words()))})
		opts = append(opts, pipeline.WithPhraseHook(func(p pipeline.Phrase, reasons []string) {
			tui.post(phraseMsg{Text: p.Text, Matches: reasons})
		}))
	}
	d := pipeline.New(pipeline.Config{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		Hints:      matcher.Words(),
	}, source, stt, matcher, s, opts...)
	d.SetPaused(pauseWanted.Load())
	activeDriver.Store(d)
	defer activeDriver.Store(nil)

	log.SessionStart(source.Name(), stt.Name(), len(matcher.Words()))
	err = d.Run(ctx)
	log.SessionEnd(int(started.Load()))
	if err != nil {
		log.Errorf("pipeline: %v", err)
		tray.SetError(err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// meterProvider returns the Prometheus-backed provider when addr is set,
// and a no-op provider otherwise.
func meterProvider(ctx context.Context, addr string) (metric.MeterProvider, func(), error) {
	if addr == "" {
		return noop.NewMeterProvider(), func() {}, nil
	}
	p, err := metrics.InitProvider()
	if err != nil {
		return nil, nil, err
	}
	go func() {
		if err := p.Serve(ctx, addr); err != nil {
			log.Errorf("metrics: serve %s: %v", addr, err)
		}
	}()
	return p, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		p.Shutdown(shutdownCtx)
	}, nil
}

func modeLineText(source audio.Source, stt transcriber.Transcriber, words int) string {
	parts := []string{source.Name(), stt.Name(), fmt.Sprintf("%d words", words)}
	if stt.Name() == transcriber.ProviderStub {
		parts = append(parts, "no recognizer configured")
	}
	return "[" + strings.Join(parts, " | ") + "]"
}

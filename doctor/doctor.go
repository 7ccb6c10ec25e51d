package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"

	"straf/audio"
	"straf/config"
	"straf/shutdown"
	"straf/transcriber"
)

// Durations of the live checks.
var (
	micWindow    = 3 * time.Second
	listenWindow = 8 * time.Second
)

// Run executes the diagnostic checks against the configuration at
// configPath and returns an exit code (0=all pass, 1=any fail).
func Run(configPath string) int {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		if state, err := term.GetState(fd); err == nil {
			defer term.Restore(fd, state)
		}
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	return run(ctx, os.Stdout, configPath)
}

func run(ctx context.Context, out io.Writer, configPath string) int {
	fmt.Fprintln(out, "straf doctor - system diagnostics")
	fmt.Fprintln(out, "=================================")

	cfg, ok := checkConfig(out, configPath)
	allPass := ok
	if ok && !checkMic(ctx, out, cfg) {
		allPass = false
	}
	if ok && !checkTranscriber(ctx, out, cfg) {
		allPass = false
	}

	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func checkConfig(out io.Writer, path string) (*config.Config, bool) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[1/3] Configuration")

	label := path
	if label == "" {
		label = "(built-in sample)"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return nil, false
	}
	if len(cfg.Words) == 0 {
		fmt.Fprintf(out, "  FAIL: %s has an empty vocabulary\n", label)
		return cfg, false
	}
	fmt.Fprintf(out, "  PASS: %s, %d words, sinks %v\n", label, len(cfg.Words), cfg.Overlay.Sinks)
	return cfg, true
}

func checkMic(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[2/3] Microphone")

	src, err := cfg.Source()
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	if err := src.Initialize(cfg.Audio.SampleRate, cfg.Audio.Channels); err != nil {
		fmt.Fprintf(out, "  FAIL: cannot open %s: %v\n", src.Name(), err)
		return false
	}

	var (
		mu     sync.Mutex
		frames int
		peak   float64
	)
	err = src.Start(func(pcm []byte) {
		level := audio.RMS(pcm)
		mu.Lock()
		frames++
		peak = max(peak, level)
		mu.Unlock()
	})
	if err != nil {
		src.Stop()
		fmt.Fprintf(out, "  FAIL: cannot start %s: %v\n", src.Name(), err)
		return false
	}

	fmt.Fprintf(out, "  Listening on %s for %s, say something...\n", src.Name(), micWindow)
	select {
	case <-time.After(micWindow):
	case <-ctx.Done():
	}
	src.Stop()

	mu.Lock()
	defer mu.Unlock()
	switch {
	case frames == 0:
		fmt.Fprintln(out, "  FAIL: no audio frames delivered")
		return false
	case peak == 0 && cfg.Audio.Source == audio.KindDevice:
		fmt.Fprintf(out, "  FAIL: %d frames, all silent; is the microphone muted?\n", frames)
		return false
	}
	fmt.Fprintf(out, "  PASS: %d frames, peak level %.0f\n", frames, peak)
	return true
}

func checkTranscriber(ctx context.Context, out io.Writer, cfg *config.Config) bool {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[3/3] Speech recognition")

	stt, err := transcriber.New(cfg.Transcriber())
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return false
	}
	matcher := cfg.Matcher()
	if err := stt.Initialize(matcher.Words()); err != nil {
		fmt.Fprintf(out, "  FAIL: %s: %v\n", stt.Name(), err)
		return false
	}
	fmt.Fprintf(out, "  PASS: %s initialized\n", stt.Name())
	if stt.Name() == transcriber.ProviderStub {
		fmt.Fprintln(out, "  Note: no recognizer configured, set DEEPGRAM_API_KEY or GROQ_API_KEY")
		return true
	}

	src, err := cfg.Source()
	if err != nil {
		return true
	}
	if err := src.Initialize(cfg.Audio.SampleRate, cfg.Audio.Channels); err != nil {
		return true
	}

	var mu sync.Mutex
	var heard []string
	err = stt.Start(func(text string, confidence float64) {
		line := fmt.Sprintf("%q (%.2f)", text, confidence)
		for _, m := range matcher.Analyze(text, confidence) {
			line += " -> match " + m.Word
		}
		mu.Lock()
		heard = append(heard, line)
		mu.Unlock()
	})
	if err != nil {
		src.Stop()
		fmt.Fprintf(out, "  FAIL: %s start: %v\n", stt.Name(), err)
		return false
	}
	if err := src.Start(stt.Feed); err != nil {
		stt.Stop()
		src.Stop()
		return true
	}

	fmt.Fprintf(out, "  Say one of your words within %s...\n", listenWindow)
	select {
	case <-time.After(listenWindow):
	case <-ctx.Done():
	}
	stt.Stop()
	src.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(heard) == 0 {
		fmt.Fprintln(out, "  Heard nothing")
	}
	for _, h := range heard {
		fmt.Fprintf(out, "  Heard %s\n", h)
	}
	return true
}

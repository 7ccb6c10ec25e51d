package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName      = "diagnostics_log.txt"
	detectionFileName = "detections_log.txt"
)

var (
	diagLog       zerolog.Logger
	diagFile      *os.File
	detectionFile *os.File
	logMu         sync.Mutex
	logReady      atomic.Bool
	pid           int
	dir           string
)

// Options controls Init. Console, when set, receives a copy of every
// diagnostic line.
type Options struct {
	Level   string
	Console io.Writer
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// ParseLevel maps a config level name to zerolog. TEST_VERBOSE forces debug.
func ParseLevel(name string) (zerolog.Level, error) {
	if os.Getenv("TEST_VERBOSE") != "" {
		return zerolog.DebugLevel, nil
	}
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("log level %q: %w", name, err)
	}
	return lvl, nil
}

func Init(opts Options) error {
	logMu.Lock()
	defer logMu.Unlock()

	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	detectionFile, err = os.OpenFile(filepath.Join(dir, detectionFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	if opts.Console != nil {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: "15:04:05",
			NoColor:    true,
		})
	}
	diagLog = zerolog.New(out).Level(lvl).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if detectionFile != nil {
		detectionFile.Close()
		detectionFile = nil
	}
}

func Debug(msg string) {
	if logReady.Load() {
		diagLog.Debug().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(audio, stt string, words int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("audio", audio).
		Str("stt", stt).
		Int("words", words).
		Msg("session_start")
}

func SessionEnd(penalties int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("penalties", penalties).
		Msg("session_end")
}

// Phrase appends a recognized phrase to the detections log.
func Phrase(text string, confidence float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Debug().Float64("confidence", confidence).Str("text", text).Msg("phrase")

	logMu.Lock()
	defer logMu.Unlock()
	if detectionFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%.2f\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, confidence, text)
	detectionFile.WriteString(line)
}

func Match(word string, confidence float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("word", word).
		Float64("confidence", confidence).
		Msg("match")
}

// Penalty records a scheduler transition: admitted, started or expired.
func Penalty(kind, reason string, severity int, d time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Str("reason", reason).
		Int("severity", severity).
		Float64("duration_s", d.Seconds()).
		Msg("penalty")
}

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name, flag, env, want string
	}{
		{"flag", "/tmp/mylog", "/tmp/ignored", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"env", "", "/tmp/straf-env-log", "/tmp/straf-env-log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogPath, tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDir(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(k string) string { return vars[k] }
	}
	tests := []struct {
		goos string
		vars map[string]string
		want string
	}{
		{"darwin", nil, "/home/u/Library/Logs/straf"},
		{"windows", map[string]string{"LOCALAPPDATA": "/appdata"}, "/appdata/straf/logs"},
		{"windows", nil, "/home/u/AppData/Local/straf/logs"},
		{"linux", map[string]string{"XDG_STATE_HOME": "/state"}, "/state/straf"},
		{"linux", nil, "/home/u/.local/state/straf"},
	}
	for _, tt := range tests {
		got, err := defaultDir(tt.goos, "/home/u", env(tt.vars))
		if err != nil {
			t.Fatalf("%s: %v", tt.goos, err)
		}
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("%s %v: got %q, want %q", tt.goos, tt.vars, got, tt.want)
		}
	}
	if _, err := defaultDir("linux", "", env(nil)); err == nil {
		t.Error("expected error without a home directory")
	}
}

func TestParseLevel(t *testing.T) {
	t.Setenv("TEST_VERBOSE", "")
	for _, name := range []string{"", "debug", "info", "warn", "error"} {
		if _, err := ParseLevel(name); err != nil {
			t.Errorf("ParseLevel(%q): %v", name, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{diagFileName, detectionFileName} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestPhraseWritesDetectionsLog(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}

	Phrase("well darn it", 0.91)

	data, err := os.ReadFile(filepath.Join(tmp, detectionFileName))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "well darn it") {
		t.Errorf("detections log missing text, got: %q", line)
	}
	if !strings.Contains(line, "\t0.91\t") {
		t.Errorf("expected tab-separated confidence, got: %q", line)
	}
}

func TestConsoleMirror(t *testing.T) {
	setupLogDir(t)
	var buf bytes.Buffer

	if err := Init(Options{Level: "debug", Console: &buf}); err != nil {
		t.Fatal(err)
	}
	Penalty("admitted", "darn", 1, 5*time.Second)

	out := buf.String()
	if !strings.Contains(out, "penalty") || !strings.Contains(out, "reason=darn") {
		t.Errorf("console output = %q", out)
	}
}

func TestLevelFilters(t *testing.T) {
	t.Setenv("TEST_VERBOSE", "")
	setupLogDir(t)
	var buf bytes.Buffer

	if err := Init(Options{Level: "warn", Console: &buf}); err != nil {
		t.Fatal(err)
	}
	Info("quiet")
	Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestHelpersBeforeInit(t *testing.T) {
	Info("not ready")
	Phrase("not ready", 1)
	Penalty("started", "x", 1, time.Second)
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(Options{}); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}

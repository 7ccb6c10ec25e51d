//go:build integration

package test_test

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("STRAF_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "STRAF_TEST_BIN not set; build the binary and point STRAF_TEST_BIN at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fastConfig penalizes for one second with no gaps so a run finishes quickly.
const fastConfig = `
words: [darn, heck, "oh no"]
penalty:
  durationSeconds: 1
  cooldownSeconds: 0
  queueLimit: 5
  debounceSeconds: 0
  phraseCooldownSeconds: 0
logging:
  level: debug
`

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

type result struct {
	logDir string
	stdout string
}

func runStraf(t *testing.T, config, stdin string, args ...string) result {
	t.Helper()
	logDir := t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-test"}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "STRAF_CONFIG_PATH="+writeConfig(t, config))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("straf exited with error: %v\nstdout: %s\nstderr: %s", err, stdout.String(), stderr.String())
	}
	return result{logDir: logDir, stdout: stdout.String()}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func statusLines(stdout string) []string {
	var out []string
	for _, l := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(l, "STATUS ") {
			out = append(out, l)
		}
	}
	return out
}

func TestSinglePenalty(t *testing.T) {
	r := runStraf(t, fastConfig, cmds("SAY well darn it", "SLEEP 200", "STATUS", "WAIT_IDLE", "STATUS", "QUIT"))

	status := statusLines(r.stdout)
	if len(status) != 2 {
		t.Fatalf("got %d STATUS lines, want 2\n%s", len(status), r.stdout)
	}
	if status[0] != `STATUS severity=1 active="darn" queue=0` {
		t.Errorf("while active: %s", status[0])
	}
	if status[1] != `STATUS severity=0 active="" queue=0` {
		t.Errorf("after idle: %s", status[1])
	}

	if det := readLog(t, r.logDir, "detections_log.txt"); !strings.Contains(det, "well darn it") {
		t.Errorf("detections_log.txt missing phrase:\n%s", det)
	}
	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "kind=admitted", "kind=started", "kind=expired", "session_end"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics_log.txt missing %q", want)
		}
	}
}

func TestQueuedPenalties(t *testing.T) {
	r := runStraf(t, fastConfig, cmds("SAY darn and heck", "SLEEP 200", "STATUS", "WAIT_IDLE", "QUIT"))

	status := statusLines(r.stdout)
	if len(status) != 1 || status[0] != `STATUS severity=2 active="darn" queue=1` {
		t.Fatalf("unexpected status: %v", status)
	}
	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	if n := strings.Count(diag, "kind=started"); n != 2 {
		t.Errorf("started %d penalties, want 2", n)
	}
	if !strings.Contains(diag, "penalties=2") {
		t.Error("session_end should report 2 penalties")
	}
}

func TestDebounce(t *testing.T) {
	config := strings.Replace(fastConfig, "debounceSeconds: 0", "debounceSeconds: 30", 1)
	r := runStraf(t, config, cmds("SAY darn", "SAY heck", "WAIT_IDLE", "QUIT"))

	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	if n := strings.Count(diag, "kind=admitted"); n != 1 {
		t.Errorf("admitted %d penalties, want 1", n)
	}
	if !strings.Contains(r.stdout, `HEARD "heck" matches=heck`) {
		t.Errorf("second phrase not matched:\n%s", r.stdout)
	}
}

func TestNoMatch(t *testing.T) {
	r := runStraf(t, fastConfig, cmds("SAY lovely weather", "STATUS", "QUIT"))

	if s := statusLines(r.stdout); len(s) != 1 || s[0] != `STATUS severity=0 active="" queue=0` {
		t.Errorf("unexpected status: %v", s)
	}
	if strings.Contains(readLog(t, r.logDir, "diagnostics_log.txt"), "kind=admitted") {
		t.Error("no penalty expected")
	}
}

func TestNoDetector(t *testing.T) {
	t.Setenv("STRAF_NO_DETECTOR", "1")
	r := runStraf(t, fastConfig, cmds("SAY darn", "STATUS", "QUIT"))

	if !strings.Contains(r.stdout, `HEARD "darn" matches=`+"\n") {
		t.Errorf("expected an unmatched phrase:\n%s", r.stdout)
	}
}

package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

type logEntry struct {
	level string
	msg   string
}

// recordLogger captures log calls for assertions.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
}

func (l *recordLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

func newTestRunner(t *testing.T) (*Runner, *recordLogger) {
	t.Helper()
	log := &recordLogger{}
	return &Runner{
		Workspace: t.TempDir(),
		Timeout:   10 * time.Second,
		MaxOutput: 1 << 20,
		Logger:    log,
	}, log
}

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func TestRun_Success(t *testing.T) {
	r, log := newTestRunner(t)
	res, err := r.Run(context.Background(), sh(`printf 'a\nb\n'`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK {
		t.Errorf("OK = false, want true")
	}
	if res.Text != "a\nb" {
		t.Errorf("Text = %q, want %q", res.Text, "a\nb")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	got := log.messages("debug")
	want := []string{" || a", " || b"}
	if !slices.Equal(got, want) {
		t.Errorf("debug log = %q, want %q", got, want)
	}
	if len(log.messages("warn")) != 0 {
		t.Errorf("unexpected warnings: %q", log.messages("warn"))
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	r, log := newTestRunner(t)
	argv := sh(`echo oops >&2; exit 1`)
	res, err := r.Run(context.Background(), argv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Error("OK = true, want false")
	}
	if res.Text != "oops" {
		t.Errorf("Text = %q, want %q", res.Text, "oops")
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if got := log.messages("error"); !slices.Equal(got, []string{" !! oops"}) {
		t.Errorf("error log = %q, want [\" !! oops\"]", got)
	}
	warns := log.messages("warn")
	if len(warns) != 1 || !strings.Contains(warns[0], strings.Join(argv, " ")) {
		t.Errorf("warn log = %q, want one entry containing the command", warns)
	}
}

func TestRun_NonZeroExitQuiet(t *testing.T) {
	r, log := newTestRunner(t)
	res, err := r.Run(context.Background(), sh(`echo out; echo oops >&2; exit 1`), WithShowOutput(false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Error("OK = true, want false")
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if len(res.Stderr) != 0 {
		t.Errorf("Stderr = %q, want none kept", res.Stderr)
	}
	// Stdout is still collected, just not logged.
	if !slices.Equal(res.Stdout, []string{"out"}) {
		t.Errorf("Stdout = %q, want [out]", res.Stdout)
	}
	if got := log.messages("debug"); len(got) != 0 {
		t.Errorf("debug log = %q, want none", got)
	}
	if got := log.messages("error"); !slices.Equal(got, []string{" !! oops"}) {
		t.Errorf("error log = %q, want stderr logged regardless", got)
	}
}

func TestRun_BinaryNotFound(t *testing.T) {
	r, log := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"nonexistent-binary-xyz-123"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if res != nil {
		t.Errorf("Result = %+v, want nil", res)
	}
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %T, want *LaunchError", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("error = %v, want to wrap exec.ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "nonexistent-binary-xyz-123") {
		t.Errorf("error = %q, want to mention the binary name", err)
	}
	if len(log.messages("warn")) != 0 {
		t.Error("launch failure should not log a command failure")
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), nil)
	if !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("error = %v, want ErrEmptyCommand", err)
	}
}

func TestRun_Idempotent(t *testing.T) {
	r, _ := newTestRunner(t)
	argv := sh(`echo same; echo again`)
	first, err := r.Run(context.Background(), argv)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Run(context.Background(), argv)
	if err != nil {
		t.Fatal(err)
	}
	if first.OK != second.OK || first.Text != second.Text {
		t.Errorf("results differ: (%v, %q) vs (%v, %q)", first.OK, first.Text, second.OK, second.Text)
	}
	if first.RunID == second.RunID {
		t.Error("RunID reused across runs")
	}
}

func TestRun_LineSplitting(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Run(context.Background(), sh(`printf 'crlf\r\ninner\rcr\n  spaced  \n\nlast'`))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"crlf", "inner\rcr", "  spaced  ", "", "last"}
	if !slices.Equal(res.Stdout, want) {
		t.Errorf("Stdout = %q, want %q", res.Stdout, want)
	}
}

func TestRun_InvalidUTF8Replaced(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Run(context.Background(), sh(`printf '\377ok\n'`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "\ufffdok" {
		t.Errorf("Text = %q, want %q", res.Text, "\ufffdok")
	}
}

func TestRun_LargeStderrDoesNotBlock(t *testing.T) {
	r, _ := newTestRunner(t)
	// Far more than a pipe buffer on stderr before anything on stdout.
	res, err := r.Run(context.Background(), sh(`i=0; while [ $i -lt 20000 ]; do echo "err line $i" >&2; i=$((i+1)); done; echo done`))
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Text != "done" {
		t.Errorf("got (%v, %q), want (true, \"done\")", res.OK, res.Text)
	}
	if len(res.Stderr) != 20000 {
		t.Errorf("len(Stderr) = %d, want 20000", len(res.Stderr))
	}
}

func TestRun_Env(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Run(context.Background(), sh(`echo "$CMDRUN_TEST_VALUE"`), WithEnv("CMDRUN_TEST_VALUE=hello"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q, want hello", res.Text)
	}
}

func TestRun_Stdin(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Run(context.Background(), []string{"cat"}, WithStdin(strings.NewReader("from stdin\n")))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "from stdin" {
		t.Errorf("Text = %q, want %q", res.Text, "from stdin")
	}
}

func TestRun_CWDWithinWorkspace(t *testing.T) {
	r, _ := newTestRunner(t)
	sub := filepath.Join(r.Workspace, "subdir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := r.Run(context.Background(), []string{"pwd"}, WithDir("subdir"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Text, "subdir") {
		t.Errorf("Text = %q, want to contain 'subdir'", res.Text)
	}
	if res.Dir != sub {
		t.Errorf("Dir = %q, want %q", res.Dir, sub)
	}
}

func TestRun_CWDOutsideWorkspace_Relative(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, WithDir("../"))
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("error = %v, want *LaunchError", err)
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_CWDOutsideWorkspace_Absolute(t *testing.T) {
	r, _ := newTestRunner(t)
	_, err := r.Run(context.Background(), []string{"echo"}, WithDir("/"))
	if err == nil {
		t.Fatal("expected error for absolute cwd outside workspace")
	}
	if !strings.Contains(err.Error(), "outside workspace") {
		t.Errorf("error = %q, want 'outside workspace'", err)
	}
}

func TestRun_NoWorkspaceInheritsDir(t *testing.T) {
	r := &Runner{}
	res, err := r.Run(context.Background(), []string{"pwd"})
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	got, _ := filepath.EvalSymlinks(res.Text)
	want, _ := filepath.EvalSymlinks(wd)
	if got != want {
		t.Errorf("Text = %q, want %q", res.Text, wd)
	}
}

func TestRun_Timeout(t *testing.T) {
	r, log := newTestRunner(t)
	r.Timeout = 100 * time.Millisecond

	start := time.Now()
	res, err := r.Run(context.Background(), []string{"sleep", "10"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if res == nil || res.OK {
		t.Fatalf("Result = %+v, want a failed partial result", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %v, want the timeout to stop it", elapsed)
	}
	if len(log.messages("warn")) != 1 {
		t.Errorf("warn log = %q, want one interruption warning", log.messages("warn"))
	}
}

func TestRun_CancelKillsProcessGroup(t *testing.T) {
	r, _ := newTestRunner(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// The backgrounded sleep inherits the stdout pipe; reading only
	// finishes if it is killed along with the shell.
	start := time.Now()
	_, err := r.Run(ctx, sh(`sleep 10 & wait`))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run took %v, want the whole group killed", elapsed)
	}
}

func TestRun_OutputTruncation(t *testing.T) {
	r, _ := newTestRunner(t)
	r.MaxOutput = 100 // very small cap

	res, err := r.Run(context.Background(), sh(`i=0; while [ $i -lt 100 ]; do echo x; i=$((i+1)); done`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Stdout) != 50 {
		t.Errorf("len(Stdout) = %d, want 50", len(res.Stdout))
	}
}

func TestExitCodeFrom(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 7")
	err := cmd.Run()
	if err == nil {
		t.Fatalf("expected non-zero exit error")
	}
	if code := exitCodeFrom(err, nil); code != 7 {
		t.Fatalf("unexpected exit code from error: %d", code)
	}

	cmd2 := exec.Command("/bin/sh", "-c", "exit 0")
	if err := cmd2.Run(); err != nil {
		t.Fatalf("unexpected error running cmd2: %v", err)
	}
	if code := exitCodeFrom(nil, cmd2.ProcessState); code != 0 {
		t.Fatalf("unexpected exit code from process state: %d", code)
	}

	if code := exitCodeFrom(errors.New("boom"), nil); code != -1 {
		t.Fatalf("expected -1 for unknown error, got %d", code)
	}
}

func TestTrimNewline(t *testing.T) {
	cases := map[string]string{
		"plain":      "plain",
		"lf\n":       "lf",
		"crlf\r\n":   "crlf",
		"cr\r":       "cr\r",
		"tab\t\n":    "tab\t",
		"double\n\n": "double\n",
	}
	for in, want := range cases {
		if got := trimNewline(in); got != want {
			t.Errorf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRun_LongLineTruncated(t *testing.T) {
	r, _ := newTestRunner(t)
	r.MaxOutput = 1000

	res, err := r.Run(context.Background(), sh(`head -c 200000 /dev/zero | tr '\0' a; echo; echo done`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	size := 0
	for _, line := range res.Stdout {
		size += len(line) + 1
	}
	if size > r.MaxOutput {
		t.Errorf("kept %d bytes of stdout, want at most %d", size, r.MaxOutput)
	}
}

func TestReadLines_CapsLongLine(t *testing.T) {
	in := strings.Repeat("a", 1<<20) + "\nshort\n"
	var (
		lines []string
		cuts  []bool
	)
	if err := readLines(strings.NewReader(in), 100, func(line string, cut bool) {
		lines = append(lines, line)
		cuts = append(cuts, cut)
	}); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if len(lines[0]) != 100 {
		t.Errorf("len(lines[0]) = %d, want 100", len(lines[0]))
	}
	if lines[1] != "short" {
		t.Errorf("lines[1] = %q, want short", lines[1])
	}
	if !slices.Equal(cuts, []bool{true, false}) {
		t.Errorf("cuts = %v, want [true false]", cuts)
	}
}

func TestReadLines_CutsOnRuneBoundary(t *testing.T) {
	var lines []string
	if err := readLines(strings.NewReader("ééé\nok"), 3, func(line string, _ bool) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lines, []string{"é", "ok"}) {
		t.Errorf("lines = %q, want [é ok]", lines)
	}
}

func TestLimitLines_CutLineTruncates(t *testing.T) {
	l := &limitLines{limit: 100}
	l.add("kept", false)
	l.add("é", true)
	l.add("dropped", false)
	if !l.truncated {
		t.Error("truncated = false after a cut line")
	}
	if !slices.Equal(l.lines, []string{"kept"}) {
		t.Errorf("lines = %q, want [kept]", l.lines)
	}
}

func TestInterrupted(t *testing.T) {
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	exitErr := errors.New("signal: killed")

	if err := interrupted(expired, nil); err != nil {
		t.Errorf("clean exit after deadline reported as %v", err)
	}
	if err := interrupted(expired, exitErr); !errors.Is(err, context.Canceled) {
		t.Errorf("killed run = %v, want context.Canceled", err)
	}
	if err := interrupted(context.Background(), exitErr); err != nil {
		t.Errorf("failed run with live context reported as %v", err)
	}
}

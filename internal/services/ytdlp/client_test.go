package ytdlp_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mediadrop/internal/services/ytdlp"
)

type stubExecutor struct {
	lines []string
	err   error
	calls int
	args  [][]string
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	s.calls++
	s.args = append(s.args, append([]string(nil), args...))
	for _, line := range s.lines {
		onLine(line)
	}
	return s.err
}

func TestFetchBuildsArgumentsAndStreamsLines(t *testing.T) {
	exec := &stubExecutor{lines: []string{"[download] Destination: x.mp4", "[download] 100% of 1.00MiB"}}
	client, err := ytdlp.New("yt-dlp", ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var got []string
	req := ytdlp.Request{
		URL:            "https://example.com/watch?v=1",
		ConfigPath:     "/etc/mediadrop/yt-dlp.conf",
		OutputDir:      "/tmp/task",
		OutputTemplate: "%(id)s.%(ext)s",
	}
	if err := client.Fetch(context.Background(), req, func(line string) { got = append(got, line) }); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected streamed lines, got %v", got)
	}
	want := []string{"--config-location", "/etc/mediadrop/yt-dlp.conf", "--newline", "--progress", "-o", "/tmp/task/%(id)s.%(ext)s", "https://example.com/watch?v=1"}
	if strings.Join(exec.args[0], " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected args: %v", exec.args[0])
	}
}

func TestFetchRequiresURLAndDir(t *testing.T) {
	client, _ := ytdlp.New("yt-dlp", ytdlp.WithExecutor(&stubExecutor{}))
	if err := client.Fetch(context.Background(), ytdlp.Request{OutputDir: "/tmp"}, nil); err == nil {
		t.Fatal("expected error for missing url")
	}
	if err := client.Fetch(context.Background(), ytdlp.Request{URL: "https://example.com"}, nil); err == nil {
		t.Fatal("expected error for missing output dir")
	}
	if _, err := ytdlp.New("  "); err == nil {
		t.Fatal("expected error for blank binary")
	}
}

func TestFetchWrapsNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "yt-dlp")
	body := "#!/bin/sh\necho '[youtube] abc: Downloading webpage'\necho 'ERROR: [youtube] abc: Video unavailable' >&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	client, err := ytdlp.New(script)
	if err != nil {
		t.Fatal(err)
	}

	var lines []string
	err = client.Fetch(context.Background(), ytdlp.Request{URL: "https://example.com", OutputDir: dir}, func(line string) {
		lines = append(lines, line)
	})
	var exitErr *ytdlp.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 1 {
		t.Fatalf("unexpected exit code %d", exitErr.Code)
	}
	if exitErr.LastLine() != "ERROR: [youtube] abc: Video unavailable" {
		t.Fatalf("unexpected last line %q", exitErr.LastLine())
	}
	if len(lines) != 2 {
		t.Fatalf("expected both output streams forwarded, got %v", lines)
	}
}

func TestFetchSuccessfulProcess(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "yt-dlp")
	body := "#!/bin/sh\nfor last; do :; done\necho \"fetched $last\"\nexit 0\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	client, err := ytdlp.New(script)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	err = client.Fetch(context.Background(), ytdlp.Request{URL: "https://example.com/v", OutputDir: dir}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fetched https://example.com/v" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

func TestFetchCancelled(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "yt-dlp")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	client, err := ytdlp.New(script)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = client.Fetch(ctx, ytdlp.Request{URL: "https://example.com", OutputDir: dir}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	client, _ := ytdlp.New("yt-dlp", ytdlp.WithExecutor(&stubExecutor{lines: []string{"2024.08.06", "extra"}}))
	version, err := client.Version(context.Background())
	if err != nil || version != "2024.08.06" {
		t.Fatalf("unexpected version %q %v", version, err)
	}
}

func TestResolveConfigPathPrefersLocal(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "yt-dlp.conf")
	if got := ytdlp.ResolveConfigPath(base); got != base {
		t.Fatalf("expected base path without local override, got %q", got)
	}
	local := filepath.Join(dir, "yt-dlp.local.conf")
	if err := os.WriteFile(local, []byte("-f best"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ytdlp.ResolveConfigPath(base); got != local {
		t.Fatalf("expected local override, got %q", got)
	}
	if ytdlp.ResolveConfigPath("") != "" {
		t.Fatal("expected empty path to stay empty")
	}
}

func TestParseProgress(t *testing.T) {
	if pct, ok := ytdlp.ParseProgress("[download]  45.3% of ~ 10.00MiB at 1.00MiB/s ETA 00:05"); !ok || pct != 45.3 {
		t.Fatalf("unexpected progress %v %v", pct, ok)
	}
	if _, ok := ytdlp.ParseProgress("[info] Writing video metadata"); ok {
		t.Fatal("expected non-progress line to be ignored")
	}
}

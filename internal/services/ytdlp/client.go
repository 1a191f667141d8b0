package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

const tailLines = 20

// Request describes one retrieval.
type Request struct {
	URL            string
	ConfigPath     string
	OutputDir      string
	OutputTemplate string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// ExitError reports a yt-dlp run that exited non-zero.
type ExitError struct {
	Code int
	Tail []string
	Err  error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("yt-dlp exited with status %d", e.Code)
	if last := e.LastLine(); last != "" {
		msg += ": " + last
	}
	return msg
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// LastLine returns the last non-empty output line, preferring lines that
// start with ERROR:.
func (e *ExitError) LastLine() string {
	for i := len(e.Tail) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.Tail[i], "ERROR:") {
			return e.Tail[i]
		}
	}
	for i := len(e.Tail) - 1; i >= 0; i-- {
		if strings.TrimSpace(e.Tail[i]) != "" {
			return e.Tail[i]
		}
	}
	return ""
}

// Args builds the yt-dlp argument list for req.
func Args(req Request) []string {
	args := make([]string, 0, 8)
	if req.ConfigPath != "" {
		args = append(args, "--config-location", req.ConfigPath)
	}
	args = append(args, "--newline", "--progress")
	template := req.OutputTemplate
	if template == "" {
		template = "%(title)s-%(id)s.%(ext)s"
	}
	args = append(args, "-o", filepath.Join(req.OutputDir, template), req.URL)
	return args
}

// Fetch runs yt-dlp for req, forwarding each output line to onLine.
func (c *Client) Fetch(ctx context.Context, req Request, onLine func(string)) error {
	if strings.TrimSpace(req.URL) == "" {
		return errors.New("url required")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return errors.New("output directory required")
	}

	tail := newLineRing(tailLines)
	forward := func(line string) {
		tail.add(line)
		if onLine != nil {
			onLine(line)
		}
	}

	err := c.exec.Run(ctx, c.binary, Args(req), forward)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Tail: tail.lines(), Err: err}
	}
	var ours *ExitError
	if errors.As(err, &ours) {
		if len(ours.Tail) == 0 {
			ours.Tail = tail.lines()
		}
		return ours
	}
	return fmt.Errorf("run yt-dlp: %w", err)
}

// Version returns the output of yt-dlp --version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	err := c.exec.Run(ctx, c.binary, []string{"--version"}, func(line string) {
		if version == "" {
			version = strings.TrimSpace(line)
		}
	})
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w", err)
	}
	return version, nil
}

// ResolveConfigPath returns the sibling <name>.local.conf of path when it
// exists, otherwise path itself. An empty path stays empty.
func ResolveConfigPath(path string) string {
	if path == "" {
		return ""
	}
	ext := filepath.Ext(path)
	local := strings.TrimSuffix(path, ext) + ".local" + ext
	if info, err := os.Stat(local); err == nil && !info.IsDir() {
		return local
	}
	return path
}

var progressPattern = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a yt-dlp --newline progress line.
func ParseProgress(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

type lineRing struct {
	mu    sync.Mutex
	buf   []string
	next  int
	count int
}

func newLineRing(size int) *lineRing {
	return &lineRing{buf: make([]string, size)}
}

func (r *lineRing) add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = line
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *lineRing) lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	var lineMu sync.Mutex

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if onLine == nil {
				continue
			}
			lineMu.Lock()
			onLine(line)
			lineMu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	return cmd.Wait()
}

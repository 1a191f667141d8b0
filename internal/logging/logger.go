package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"mediadrop/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// Location controls the timezone of rendered timestamps. Nil means UTC.
	Location *time.Location
}

// New constructs a slog logger that writes to every configured output.
// "stdout" and "stderr" name the process streams; anything else is a file
// path opened for append. Console output is colorized only on terminals.
func New(opts Options) (*slog.Logger, error) {
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	sinks, err := openSinks(opts.OutputPaths, opts.ErrorOutputPaths)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	if format == "json" {
		writers := make([]io.Writer, len(sinks))
		for i, s := range sinks {
			writers[i] = s.w
		}
		return slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
			Level:       level,
			AddSource:   addSource,
			ReplaceAttr: jsonReplacer(loc),
		})), nil
	}
	return slog.New(&consoleHandler{
		mu:        &sync.Mutex{},
		sinks:     sinks,
		level:     level,
		loc:       loc,
		addSource: addSource,
	}), nil
}

// NewFromConfig builds the daemon logger from cfg: stdout plus mediadrop.log in
// the configured log directory, timestamps in the upload timezone.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		Location:    cfg.Location(),
	}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		opts.OutputPaths = append(opts.OutputPaths, filepath.Join(dir, "mediadrop.log"))
	}
	return New(opts)
}

// parseLevel accepts slog level names in any case ("debug", "WARN", "info+2").
// Unknown names fall back to info.
func parseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

type sink struct {
	w     io.Writer
	color bool
}

func openSinks(outputs, errorOutputs []string) ([]sink, error) {
	targets := append(slices.Clone(outputs), errorOutputs...)
	seen := make(map[string]struct{}, len(targets))
	var sinks []sink
	for _, raw := range targets {
		target := strings.TrimSpace(raw)
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}

		switch target {
		case "stdout":
			sinks = append(sinks, streamSink(os.Stdout))
		case "stderr":
			sinks = append(sinks, streamSink(os.Stderr))
		default:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return nil, fmt.Errorf("create log directory for %s: %w", target, err)
			}
			file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", target, err)
			}
			sinks = append(sinks, sink{w: file})
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, streamSink(os.Stdout))
	}
	return sinks, nil
}

func streamSink(f *os.File) sink {
	color := os.Getenv("NO_COLOR") == "" &&
		(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	return sink{w: f, color: color}
}

func jsonReplacer(loc *time.Location) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339))
			}
			a.Key = "ts"
		case slog.LevelKey:
			a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
				a.Value = slog.StringValue(filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
			}
		}
		return a
	}
}

// consoleHandler renders one line per record:
//
//	2024-01-02T03:04:05+08:00 INFO upload[v20240102030405ab]: uploaded remote_path=/media/x.mp4
//
// The component and task_id fields are hoisted into the line prefix. Nested
// groups are flattened into dotted keys.
type consoleHandler struct {
	mu        *sync.Mutex
	sinks     []sink
	level     slog.Leveler
	loc       *time.Location
	addSource bool
	prefix    string
	preset    []field
}

type field struct {
	key   string
	value slog.Value
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = slices.Clone(h.preset)
	for _, a := range attrs {
		clone.preset = appendField(clone.preset, h.prefix, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := slices.Clone(h.preset)
	record.Attrs(func(a slog.Attr) bool {
		fields = appendField(fields, h.prefix, a)
		return true
	})

	var plain, colored []byte
	h.mu.Lock()
	defer h.mu.Unlock()
	var firstErr error
	for _, s := range h.sinks {
		var line []byte
		if s.color {
			if colored == nil {
				colored = h.render(record, fields, true)
			}
			line = colored
		} else {
			if plain == nil {
				plain = h.render(record, fields, false)
			}
			line = plain
		}
		if _, err := s.w.Write(line); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *consoleHandler) render(record slog.Record, fields []field, color bool) []byte {
	var component, task string
	rest := make([]field, 0, len(fields))
	for _, f := range fields {
		switch {
		case f.key == FieldComponent && component == "":
			component = f.value.String()
		case f.key == FieldTaskID && task == "":
			task = f.value.String()
		default:
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(96 + 24*len(rest))
	b.WriteString(ts.In(h.loc).Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level, color))
	b.WriteByte(' ')
	switch {
	case component != "" && task != "":
		fmt.Fprintf(&b, "%s[%s]: ", component, task)
	case component != "":
		b.WriteString(component + ": ")
	case task != "":
		b.WriteString("[" + task + "]: ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(formatValue(f.value))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func appendField(dst []field, prefix string, a slog.Attr) []field {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup {
		return append(dst, field{key: prefix + a.Key, value: a.Value})
	}
	inner := prefix
	if a.Key != "" {
		inner = prefix + a.Key + "."
	}
	for _, member := range a.Value.Group() {
		dst = appendField(dst, inner, member)
	}
	return dst
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

var levelColors = map[string]string{
	"ERROR": "\x1b[31m",
	"WARN":  "\x1b[33m",
	"INFO":  "\x1b[32m",
	"DEBUG": "\x1b[90m",
}

func levelLabel(level slog.Level, color bool) string {
	var label string
	switch {
	case level >= slog.LevelError:
		label = "ERROR"
	case level >= slog.LevelWarn:
		label = "WARN"
	case level >= slog.LevelInfo:
		label = "INFO"
	default:
		label = "DEBUG"
	}
	if !color {
		return label
	}
	return levelColors[label] + label + "\x1b[0m"
}

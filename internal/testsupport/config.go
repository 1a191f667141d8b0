package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediadrop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The directories exist on return. Notifications are off and the remote
// points at an unroutable placeholder until WithRemote is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.URLsDir = filepath.Join(base, "urls")
	cfgVal.Paths.TmpDir = filepath.Join(base, "tmp")
	cfgVal.Paths.FilesDir = filepath.Join(base, "files")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Download.VideoConfig = filepath.Join(base, "conf", "yt-dlp.conf")
	cfgVal.Download.AudioConfig = filepath.Join(base, "conf", "yta-dlp.conf")
	cfgVal.Download.SettleDelayMillis = 10
	cfgVal.Upload.RetryDelaySeconds = 1
	cfgVal.Upload.Timezone = "UTC"
	cfgVal.Remote.Video.URL = "http://127.0.0.1:9"
	cfgVal.Notifications.Provider = "none"
	cfgVal.Journal.Path = filepath.Join(base, "logs", "journal.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.ResolveTimezone(); err != nil {
		t.Fatalf("resolve timezone: %v", err)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRemote points the video endpoint at url.
func WithRemote(url, root string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Remote.Video.URL = url
		b.cfg.Remote.Video.Root = root
		b.cfg.Remote.Video.TimeoutSeconds = 5
	}
}

// WithUploadsDisabled turns off the upload pipeline.
func WithUploadsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Enabled = false
	}
}

// WithRetry overrides the upload retry budget. The delay is rounded up to
// whole seconds, matching the config field.
func WithRetry(maxRetries int, delay time.Duration) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxRetries = maxRetries
		seconds := int((delay + time.Second - 1) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		b.cfg.Upload.RetryDelaySeconds = seconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, a yt-dlp stub that reports a
// version and exits zero is written.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo 2024.08.06; fi\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.URLsDir)
}

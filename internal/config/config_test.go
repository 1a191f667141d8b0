package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediadrop/internal/config"
)

func TestLoadDefaultConfigUsesEnvFallbacksAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MEDIADROP_WEBDAV_URL", "https://dav.example.test/files/")
	t.Setenv("MEDIADROP_WEBDAV_PASSWORD", "secret")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantURLs := filepath.Join(tempHome, ".local", "share", "mediadrop", "urls")
	if cfg.Paths.URLsDir != wantURLs {
		t.Fatalf("unexpected urls dir: got %q want %q", cfg.Paths.URLsDir, wantURLs)
	}
	if cfg.Remote.Video.URL != "https://dav.example.test/files" {
		t.Fatalf("expected trailing slash trimmed from env url, got %q", cfg.Remote.Video.URL)
	}
	if cfg.Remote.Video.Password != "secret" {
		t.Fatalf("expected password from env, got %q", cfg.Remote.Video.Password)
	}
	if cfg.Download.MaxWorkers != 4 {
		t.Fatalf("unexpected max workers: %d", cfg.Download.MaxWorkers)
	}
	if cfg.Upload.MaxRetries != 3 || cfg.Upload.RetryDelaySeconds != 60 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Upload)
	}
	if !cfg.Upload.DeleteAfterUpload {
		t.Fatal("expected delete_after_upload enabled by default")
	}
	if cfg.Location().String() != "Asia/Shanghai" {
		t.Fatalf("unexpected location: %s", cfg.Location())
	}
	if cfg.Journal.Path != filepath.Join(cfg.Paths.LogDir, "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.Journal.Path)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.URLsDir, cfg.Paths.TmpDir, cfg.Paths.FilesDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mediadrop.toml")

	type payload struct {
		Paths struct {
			FilesDir string `toml:"files_dir"`
		} `toml:"paths"`
		Download struct {
			MaxWorkers int `toml:"max_workers"`
		} `toml:"download"`
		Upload struct {
			Timezone     string `toml:"timezone"`
			CategoryDirs bool   `toml:"category_dirs"`
		} `toml:"upload"`
		Remote struct {
			Video struct {
				URL  string `toml:"url"`
				Root string `toml:"root"`
			} `toml:"video"`
		} `toml:"remote"`
	}
	custom := payload{}
	custom.Paths.FilesDir = filepath.Join(tempDir, "holding")
	custom.Download.MaxWorkers = 2
	custom.Upload.Timezone = "UTC"
	custom.Upload.CategoryDirs = true
	custom.Remote.Video.URL = "https://dav.example.test"
	custom.Remote.Video.Root = "media/archive/"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.FilesDir != custom.Paths.FilesDir {
		t.Fatalf("unexpected files dir: %q", cfg.Paths.FilesDir)
	}
	if cfg.Download.MaxWorkers != 2 {
		t.Fatalf("unexpected max workers: %d", cfg.Download.MaxWorkers)
	}
	if !cfg.Upload.CategoryDirs {
		t.Fatal("expected category dirs enabled")
	}
	if cfg.Location().String() != "UTC" {
		t.Fatalf("unexpected location: %s", cfg.Location())
	}
	if cfg.Remote.Video.Root != "/media/archive" {
		t.Fatalf("unexpected remote root: %q", cfg.Remote.Video.Root)
	}
	endpoint, dedicated := cfg.AudioEndpoint()
	if dedicated {
		t.Fatal("expected audio endpoint to fall back to video")
	}
	if endpoint.URL != cfg.Remote.Video.URL {
		t.Fatalf("unexpected audio fallback url: %q", endpoint.URL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "missing remote url",
			mutate: func(c *config.Config) { c.Remote.Video.URL = "" },
			want:   "remote.video.url is required",
		},
		{
			name:   "zero workers",
			mutate: func(c *config.Config) { c.Download.MaxWorkers = 0 },
			want:   "download.max_workers",
		},
		{
			name:   "zero retries",
			mutate: func(c *config.Config) { c.Upload.MaxRetries = 0 },
			want:   "upload.max_retries",
		},
		{
			name:   "shared directories",
			mutate: func(c *config.Config) { c.Paths.FilesDir = c.Paths.URLsDir },
			want:   "must be different directories",
		},
		{
			name:   "unknown provider",
			mutate: func(c *config.Config) { c.Notifications.Provider = "pager" },
			want:   "notifications.provider",
		},
		{
			name:   "ftp remote",
			mutate: func(c *config.Config) { c.Remote.Video.URL = "ftp://dav.example.test" },
			want:   "http or https",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.URLsDir = "/srv/urls"
			cfg.Paths.TmpDir = "/srv/tmp"
			cfg.Paths.FilesDir = "/srv/files"
			cfg.Paths.LogDir = "/srv/logs"
			cfg.Remote.Video.URL = "https://dav.example.test"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateAllowsDisabledUploadWithoutRemote(t *testing.T) {
	cfg := config.Default()
	cfg.Upload.Enabled = false
	cfg.Remote.Video.URL = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected disabled upload to skip remote validation, got %v", err)
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config", "mediadrop.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Remote.Video.Root != "/media" {
		t.Fatalf("unexpected sample root: %q", cfg.Remote.Video.Root)
	}
}

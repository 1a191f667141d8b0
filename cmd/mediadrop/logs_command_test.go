package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsShowsTaskTranscript(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "v20240601120000abc.log")
	if err := os.WriteFile(path, []byte("[download] 10%\n[download] 50%\n[download] 100%\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "v20240601120000abc", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "10%") {
		t.Fatalf("expected only the last two lines:\n%s", out)
	}
	requireContains(t, out, "[download] 100%")
}

func TestLogsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"logs"}, env.configPath); err == nil {
		t.Fatal("expected error when no daemon log exists")
	}
}

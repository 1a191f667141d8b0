package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"mediadrop/internal/preflight"
	"mediadrop/internal/testsupport"
)

func TestCheckPassesWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithUploadsDisabled(), testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "version 2024.08.06")
	requireContains(t, out, "[OK]")
}

func TestCheckFailsWhenYTDLPMissing(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithUploadsDisabled())
	env.cfg.Download.Binary = filepath.Join(env.baseDir, "missing", "yt-dlp")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"--json", "check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail")
	}
	var results []preflight.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	failed := preflight.Failed(results)
	if len(failed) != 1 || failed[0].Name != "yt-dlp" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestTestNotifyWithoutProviderFails(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err == nil {
		t.Fatal("expected error with notifications disabled")
	}
	requireContains(t, out, "Notification not sent")
}

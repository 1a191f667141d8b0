package preflight

import (
	"context"

	"mediadrop/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config,
// including network reachability of the remotes.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := RunLocal(ctx, cfg)
	if cfg.Upload.Enabled {
		results = append(results, CheckRemote(ctx, "Video remote", cfg.Remote.Video))
		if cfg.Remote.Audio.Configured() {
			results = append(results, CheckRemote(ctx, "Audio remote", cfg.Remote.Audio))
		}
	}
	return append(results, CheckNotifications(cfg))
}

// RunLocal executes the checks that need no network: directories, the
// retrieval tool, and its config files.
func RunLocal(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Task directory", cfg.Paths.URLsDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.TmpDir),
		CheckDirectoryAccess("Holding directory", cfg.Paths.FilesDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	results = append(results, CheckYTDLP(ctx, cfg.YTDLPBinary()))
	return append(results,
		CheckYTDLPConfig("Video yt-dlp config", cfg.Download.VideoConfig),
		CheckYTDLPConfig("Audio yt-dlp config", cfg.Download.AudioConfig),
	)
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

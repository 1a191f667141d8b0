package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediadrop/internal/config"
	"mediadrop/internal/deps"
	"mediadrop/internal/services/webdav"
	"mediadrop/internal/services/ytdlp"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckYTDLP verifies the retrieval tool is installed and answers --version.
func CheckYTDLP(ctx context.Context, binary string) Result {
	const name = "yt-dlp"

	status := deps.Lookup(name, binary, "", false)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	client, err := ytdlp.New(binary)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	version, err := client.Version(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("version check failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "version " + version}
}

// CheckYTDLPConfig reports which config file a kind will use. A missing file
// is not fatal: yt-dlp then runs with its own defaults.
func CheckYTDLPConfig(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Optional: true, Detail: "not configured (yt-dlp defaults)"}
	}
	resolved := ytdlp.ResolveConfigPath(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (missing; yt-dlp defaults)", resolved)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", resolved)}
	}
	detail := resolved
	if resolved != path {
		detail += " (local override)"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRemote verifies a WebDAV endpoint answers.
func CheckRemote(ctx context.Context, name string, endpoint config.Endpoint) Result {
	if !endpoint.Configured() {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := webdav.New(name, endpoint)
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRemoteError(err)}
	}
	detail := endpoint.URL
	if endpoint.Root != "" {
		detail += " (root " + endpoint.Root + ")"
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckNotifications reports whether the configured provider has the
// settings it needs. Notifications are never required.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Optional: true, Detail: "Unknown"}
	}
	switch cfg.Notifications.Provider {
	case "none":
		return Result{Name: name, Passed: true, Optional: true, Detail: "Disabled"}
	case "ntfy":
		if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
			return Result{Name: name, Optional: true, Detail: "ntfy selected but ntfy_topic is empty"}
		}
		return Result{Name: name, Passed: true, Optional: true, Detail: "ntfy"}
	case "bark":
		if strings.TrimSpace(cfg.Notifications.BarkDeviceKey) == "" {
			return Result{Name: name, Optional: true, Detail: "bark selected but bark_device_key is empty"}
		}
		return Result{Name: name, Passed: true, Optional: true, Detail: "bark via " + cfg.Notifications.BarkServer}
	default:
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("unsupported provider %q", cfg.Notifications.Provider)}
	}
}

func summarizeRemoteError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "connect timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "connect timed out (server unreachable)"
	}
	return err.Error()
}

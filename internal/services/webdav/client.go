package webdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"

	"mediadrop/internal/config"
	"mediadrop/internal/logging"
	"mediadrop/internal/services"
)

// ErrDisabled is returned by every operation on a disabled Client.
var ErrDisabled = errors.New("remote store disabled")

// Client wraps a gowebdav client with the operations the upload pipeline
// needs.
type Client struct {
	name    string
	url     string
	root    string
	dav     *gowebdav.Client
	enabled bool
	reason  error
}

// New builds a client for endpoint without contacting the server.
func New(name string, endpoint config.Endpoint) *Client {
	dav := gowebdav.NewClient(endpoint.URL, endpoint.Username, endpoint.Password)
	if endpoint.TimeoutSeconds > 0 {
		dav.SetTimeout(time.Duration(endpoint.TimeoutSeconds) * time.Second)
	}
	return &Client{
		name:    name,
		url:     endpoint.URL,
		root:    endpoint.Root,
		dav:     dav,
		enabled: true,
	}
}

// Connect builds a client for endpoint and checks reachability. An
// unreachable or unconfigured endpoint yields a disabled client rather than
// an error.
func Connect(ctx context.Context, name string, endpoint config.Endpoint, logger *slog.Logger) *Client {
	logger = logging.NewComponentLogger(logger, "webdav")
	if !endpoint.Configured() {
		client := &Client{name: name, reason: errors.New("no url configured")}
		logging.WarnWithContext(logger, "remote store not configured; uploads disabled", "webdav_unconfigured",
			logging.String("remote", name),
			logging.String(logging.FieldErrorHint, "set remote."+name+".url in the config file"),
			logging.String(logging.FieldImpact, "files stay in the holding directory"),
		)
		return client
	}
	client := New(name, endpoint)
	if err := client.Ping(ctx); err != nil {
		client.enabled = false
		client.reason = err
		logging.WarnWithContext(logger, "remote store unreachable; uploads disabled until restart", "webdav_connect_failed",
			logging.String("remote", name),
			logging.String("url", endpoint.URL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the WebDAV url, credentials, and network, then restart the daemon"),
			logging.String(logging.FieldImpact, "files stay in the holding directory"),
		)
		return client
	}
	logger.Info("remote store connected",
		logging.String(logging.FieldEventType, "webdav_connected"),
		logging.String("remote", name),
		logging.String("url", endpoint.URL),
	)
	return client
}

// Name returns the endpoint label ("video" or "audio").
func (c *Client) Name() string {
	return c.name
}

// Root returns the configured root collection, "" for the server root.
func (c *Client) Root() string {
	return c.root
}

// Enabled reports whether the client may touch the network.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// DisabledReason explains why the client is disabled.
func (c *Client) DisabledReason() error {
	if c == nil {
		return ErrDisabled
	}
	return c.reason
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	if c.dav == nil {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.dav.Connect(); err != nil {
		return services.Wrap(services.ErrTransient, "webdav", "connect", c.url, err)
	}
	return nil
}

// Exists reports whether remotePath exists on the server.
func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	if err := c.ready(ctx); err != nil {
		return false, err
	}
	_, err := c.dav.Stat(remotePath)
	if err == nil {
		return true, nil
	}
	if gowebdav.IsErrNotFound(err) {
		return false, nil
	}
	return false, services.Wrap(services.ErrTransient, "webdav", "stat", remotePath, err)
}

// MkdirAll creates dir and its parents.
func (c *Client) MkdirAll(ctx context.Context, dir string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if err := c.dav.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "webdav", "mkdir", dir, err)
	}
	return nil
}

// Upload streams the local file to remotePath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	if err := c.dav.WriteStream(remotePath, &contextReader{ctx: ctx, r: file}, 0o644); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "webdav", "put stream", remotePath, err)
	}
	return nil
}

// WriteBytes uploads data to remotePath in a single request.
func (c *Client) WriteBytes(ctx context.Context, remotePath string, data []byte) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if err := c.dav.Write(remotePath, data, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "webdav", "put bytes", remotePath, err)
	}
	return nil
}

// Join builds an absolute remote path from segments.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if trimmed := strings.Trim(segment, "/"); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return "/" + path.Join(parts...)
}

func (c *Client) ready(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	return ctx.Err()
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mediadrop/internal/config"
	"mediadrop/internal/logging"
)

const (
	userAgent        = "mediadrop/0.1.0"
	defaultNtfyHost  = "https://ntfy.sh/"
	barkDefaultGroup = "mediadrop"
)

// Message is one notification.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	Notify(ctx context.Context, msg Message) error
}

// NewService builds the configured notifier. When the provider is "none" or
// lacks its destination, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch cfg.Notifications.Provider {
	case "ntfy":
		topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
		if topic == "" {
			return noopService{}
		}
		if !strings.Contains(topic, "://") {
			topic = defaultNtfyHost + strings.TrimLeft(topic, "/")
		}
		return &ntfyService{endpoint: topic, client: client}
	case "bark":
		key := strings.TrimSpace(cfg.Notifications.BarkDeviceKey)
		if key == "" {
			return noopService{}
		}
		return &barkService{server: cfg.Notifications.BarkServer, deviceKey: key, client: client}
	default:
		return noopService{}
	}
}

// Enabled reports whether svc actually delivers notifications.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}

// Dispatch sends msg and logs delivery failures instead of returning them.
func Dispatch(ctx context.Context, logger *slog.Logger, svc Service, msg Message) {
	if svc == nil {
		return
	}
	if err := svc.Notify(ctx, msg); err != nil {
		logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
			logging.String("title", msg.Title),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the notification provider settings and network"),
			logging.String(logging.FieldImpact, "operator was not notified; pipeline continues"),
		)
	}
}

// deliveryTimeout bounds a background delivery after its caller has moved on.
const deliveryTimeout = 30 * time.Second

// Dispatcher delivers messages off the caller's goroutine. Failures are
// logged through Dispatch.
type Dispatcher struct {
	svc Service
	wg  sync.WaitGroup
}

// NewDispatcher wraps svc. A nil svc makes Send a no-op.
func NewDispatcher(svc Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

// Send queues msg for delivery and returns immediately. Cancelling ctx does
// not abort the delivery; deliveryTimeout does.
func (d *Dispatcher) Send(ctx context.Context, logger *slog.Logger, msg Message) {
	if d == nil || d.svc == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	sendCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, deliveryTimeout)
		defer cancel()
		Dispatch(ctx, logger, d.svc, msg)
	}()
}

// Wait blocks until every queued delivery has returned.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Notify(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority != "" && msg.Priority != "default" {
		req.Header.Set("Priority", msg.Priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type barkService struct {
	server    string
	deviceKey string
	client    *http.Client
}

type barkRequest struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
	Group string `json:"group,omitempty"`
	Level string `json:"level,omitempty"`
}

type barkResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (b *barkService) Notify(ctx context.Context, msg Message) error {
	if b == nil || b.client == nil {
		return nil
	}
	payload := barkRequest{
		Title: msg.Title,
		Body:  msg.Body,
		Group: barkDefaultGroup,
	}
	if msg.Priority == "high" {
		payload.Level = "timeSensitive"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode bark payload: %w", err)
	}

	endpoint := strings.TrimRight(b.server, "/") + "/" + url.PathEscape(b.deviceKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build bark request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send bark notification: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bark returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var decoded barkResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Code != 0 && decoded.Code != http.StatusOK {
		return fmt.Errorf("bark rejected notification (%d): %s", decoded.Code, decoded.Message)
	}
	return nil
}

type noopService struct{}

func (noopService) Notify(context.Context, Message) error { return nil }

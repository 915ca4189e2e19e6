package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ultidisk/internal/config"
)

const userAgent = "ultidisk/0.1.0"

// Event enumerates the notifications the workflow emits.
type Event string

const (
	EventDisksAdded      Event = "disks_added"
	EventScanEmpty       Event = "scan_empty"
	EventDiskMounted     Event = "disk_mounted"
	EventDriveEjected    Event = "drive_ejected"
	EventGroupRotated    Event = "group_rotated"
	EventDiskDeleted     Event = "disk_deleted"
	EventBulkDeleted     Event = "bulk_deleted"
	EventDiskUpdated     Event = "disk_updated"
	EventDrivePower      Event = "drive_power"
	EventOperationFailed Event = "operation_failed"
	EventTest            Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the console notifier and adds ntfy when a topic is
// configured. console may be nil to skip console output.
func NewService(cfg *config.Config, console io.Writer) Service {
	var services []Service
	if console != nil {
		services = append(services, NewConsole(console))
	}
	if cfg != nil {
		if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
			timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			services = append(services, &ntfyService{
				endpoint: topic,
				client:   &http.Client{Timeout: timeout},
			})
		}
	}
	switch len(services) {
	case 0:
		return noopService{}
	case 1:
		return services[0]
	default:
		return multiService(services)
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

func format(event Event, payload Payload) message {
	str := func(key string) string {
		if v, ok := payload[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	}
	num := func(key string) int {
		switch v := payload[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		}
		return 0
	}

	switch event {
	case EventDisksAdded:
		body := fmt.Sprintf("Added %d disk(s)", num("added"))
		if updated := num("updated"); updated > 0 {
			body += fmt.Sprintf(", updated %d", updated)
		}
		if src := str("source"); src != "" {
			body += " from " + src
		}
		return message{title: "ultidisk - Disks Added", body: body, tags: []string{"ultidisk", "library", "added"}}
	case EventScanEmpty:
		return message{
			title: "ultidisk - No Disks Found",
			body:  fmt.Sprintf("No disk images found in %s", fallback(str("source"), "the selection")),
			tags:  []string{"ultidisk", "library", "empty"},
		}
	case EventDiskMounted:
		return message{
			title: "ultidisk - Disk Mounted",
			body:  fmt.Sprintf("Mounted %s in drive %s", str("disk"), strings.ToUpper(str("drive"))),
			tags:  []string{"ultidisk", "drive", "mounted"},
		}
	case EventDriveEjected:
		return message{
			title: "ultidisk - Drive Ejected",
			body:  fmt.Sprintf("Ejected drive %s", strings.ToUpper(str("drive"))),
			tags:  []string{"ultidisk", "drive", "ejected"},
		}
	case EventGroupRotated:
		body := fmt.Sprintf("Drive %s: %s", strings.ToUpper(str("drive")), str("disk"))
		if group := str("group"); group != "" {
			body += " (" + group + ")"
		}
		if reason := str("skipped"); reason != "" {
			body = fmt.Sprintf("Drive %s not rotated: %s", strings.ToUpper(str("drive")), reason)
		}
		return message{title: "ultidisk - Group Rotated", body: body, tags: []string{"ultidisk", "drive", "rotated"}}
	case EventDiskDeleted:
		body := fmt.Sprintf("Deleted %s", str("disk"))
		if failures := num("eject_failures"); failures > 0 {
			body += fmt.Sprintf(" (%d eject failure(s))", failures)
		}
		return message{title: "ultidisk - Disk Deleted", body: body, tags: []string{"ultidisk", "library", "deleted"}}
	case EventBulkDeleted:
		body := fmt.Sprintf("Deleted %d of %d disk(s)", num("deleted"), num("requested"))
		if failures := num("eject_failures"); failures > 0 {
			body += fmt.Sprintf(", %d eject failure(s)", failures)
		}
		return message{title: "ultidisk - Disks Deleted", body: body, tags: []string{"ultidisk", "library", "deleted"}}
	case EventDiskUpdated:
		return message{
			title: "ultidisk - Disk Updated",
			body:  fmt.Sprintf("Updated %s: %s", str("disk"), str("change")),
			tags:  []string{"ultidisk", "library", "updated"},
		}
	case EventDrivePower:
		return message{
			title: "ultidisk - Drive Power",
			body:  fmt.Sprintf("Drive %s switched %s", strings.ToUpper(str("drive")), str("state")),
			tags:  []string{"ultidisk", "drive", "power"},
		}
	case EventOperationFailed:
		var b strings.Builder
		b.WriteString("Error")
		if op := str("operation"); op != "" {
			b.WriteString(" during ")
			b.WriteString(op)
		}
		b.WriteString(": ")
		b.WriteString(fallback(str("error"), "unknown"))
		return message{
			title:    "ultidisk - Error",
			body:     b.String(),
			tags:     []string{"ultidisk", "error", "alert"},
			priority: "high",
		}
	case EventTest:
		return message{title: "ultidisk - Test", body: "Notification system test", tags: []string{"ultidisk", "test"}, priority: "low"}
	default:
		return message{title: "ultidisk", body: string(event), tags: []string{"ultidisk"}}
	}
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	data := format(event, payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
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

// Console prints one line per event.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a notifier writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Publish(_ context.Context, event Event, payload Payload) error {
	data := format(event, payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, data.body)
	return err
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

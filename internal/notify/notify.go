package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/zsprackett/trainwatch/internal/training"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier fires desktop notifications and optional webhook POSTs when a
// watched job completes.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// JobCompleted implements monitor.Notifier.
func (n *Notifier) JobCompleted(s training.Snapshot) {
	if !n.cfg.Enabled {
		return
	}

	msg := fmt.Sprintf("Job %s completed (loss %.4f)", s.JobID, s.Loss)
	n.sendSystemNotification(msg)

	if n.cfg.Webhook != "" {
		n.sendWebhook(s)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(s)
	}
}

func (n *Notifier) sendSystemNotification(msg string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "trainwatch"`, msg)
		cmd = exec.Command("osascript", "-e", script)
	case "linux":
		cmd = exec.Command("notify-send", "trainwatch", msg)
	default:
		return
	}
	if err := cmd.Run(); err != nil {
		n.logger.Debug("notify: system notification failed", "err", err)
	}
}

type webhookPayload struct {
	JobID     string  `json:"job_id"`
	Status    string  `json:"status"`
	Progress  float64 `json:"progress"`
	Loss      float64 `json:"loss"`
	Message   string  `json:"log_message"`
	Timestamp string  `json:"timestamp"`
}

func (n *Notifier) sendWebhook(s training.Snapshot) {
	payload := webhookPayload{
		JobID:     s.JobID,
		Status:    string(s.Status),
		Progress:  s.Progress,
		Loss:      s.Loss,
		Message:   s.LogMessage,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	n.post("webhook", n.cfg.Webhook, payload)
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(s training.Snapshot) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("Training job %s completed", s.JobID),
		Message:  fmt.Sprintf("final loss %.4f · %s", s.Loss, s.LogMessage),
		Priority: 3,
		Tags:     []string{"white_check_mark"},
	}
	n.post("ntfy", n.cfg.NtfyURL, payload)
}

func (n *Notifier) post(kind, url string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: "+kind+" post failed", "url", url, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("notify: "+kind+" rejected", "url", url, "status", resp.StatusCode)
	}
}

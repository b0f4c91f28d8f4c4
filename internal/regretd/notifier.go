package regretd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/regretlab/adversary-sim/pkg/logger"
	"github.com/regretlab/adversary-sim/pkg/models"
	"github.com/regretlab/adversary-sim/pkg/utils"
)

// NotificationPayload is the JSON body posted to a run's callback URL
// when the run reaches a terminal state.
type NotificationPayload struct {
	RunID           string            `json:"run_id"`
	Status          models.RunStatus  `json:"status"`
	CreatedAtUnixMs int64             `json:"created_at_unix_ms"`
	StartedAtUnixMs int64             `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64             `json:"ended_at_unix_ms,omitempty"`
	Error           string            `json:"error,omitempty"`
	Result          *models.RunResult `json:"result,omitempty"`
	Timestamp       int64             `json:"timestamp"`
}

// Notifier posts run-completion callbacks with bounded retries.
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
}

func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewLinearBackoff(1*time.Second, 10*time.Second),
	}
}

// Notify sends a notification to the callback URL asynchronously.
// It returns immediately and performs the delivery in a goroutine.
func (n *Notifier) Notify(callbackURL string, rec *RunRecord) {
	if callbackURL == "" {
		return
	}

	payload := NotificationPayload{
		RunID:           rec.Run.ID,
		Status:          rec.Run.Status,
		CreatedAtUnixMs: rec.Run.CreatedAtUnixMs,
		StartedAtUnixMs: rec.Run.StartedAtUnixMs,
		EndedAtUnixMs:   rec.Run.EndedAtUnixMs,
		Error:           rec.Run.Error,
		Result:          rec.Result,
		Timestamp:       time.Now().UTC().UnixMilli(),
	}

	go n.deliver(callbackURL, payload)
}

func (n *Notifier) deliver(callbackURL string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal notification payload",
			"run_id", payload.RunID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(n.backoff.NextDelay(attempt - 1))
		}

		lastErr = n.post(callbackURL, body)
		if lastErr == nil {
			logger.Info("notification delivered",
				"run_id", payload.RunID, "callback_url", callbackURL, "attempt", attempt+1)
			return
		}
		logger.Warn("notification attempt failed",
			"run_id", payload.RunID, "attempt", attempt+1, "error", lastErr)
	}

	logger.Error("notification delivery failed",
		"run_id", payload.RunID, "callback_url", callbackURL, "error", lastErr)
}

func (n *Notifier) post(callbackURL string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

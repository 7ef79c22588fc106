// Package notify posts run summaries to chat webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/purelind/pycompat-check/internal/orchestrator"
)

// maxListedFailures caps how many failed units one message lists.
const maxListedFailures = 20

type Notifier struct {
	successWebhook string
	failureWebhook string
	http           *http.Client
}

// Message is the text message body accepted by Feishu-style webhooks.
type Message struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

func NewNotifier(successWebhook, failureWebhook string) *Notifier {
	return &Notifier{
		successWebhook: successWebhook,
		failureWebhook: failureWebhook,
		http:           &http.Client{Timeout: 10 * time.Second},
	}
}

// SendRunSummary reports a finished run to the success webhook, or to the
// failure webhook when any unit failed. Unset webhooks are skipped.
func (n *Notifier) SendRunSummary(ctx context.Context, sum *orchestrator.Summary) error {
	if len(sum.Failures) == 0 {
		if n.successWebhook == "" {
			return nil
		}
		return n.send(ctx, n.successWebhook, textMessage(fmt.Sprintf(
			"✅ Compatibility Check Success\nRun: %s\n%s",
			sum.RunID, summaryText(sum))))
	}

	if n.failureWebhook == "" {
		return nil
	}
	var failures strings.Builder
	for i, f := range sum.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(&failures, "\n- ... and %d more", len(sum.Failures)-i)
			break
		}
		fmt.Fprintf(&failures, "\n- [py%d %s] %s",
			f.Unit.PythonVersion,
			strings.Join(f.Unit.Packages, ", "),
			f.Error)
	}
	return n.send(ctx, n.failureWebhook, textMessage(fmt.Sprintf(
		"❌ Compatibility Check Failed\nRun: %s\n%s\nErrors:%s",
		sum.RunID, summaryText(sum), failures.String())))
}

func summaryText(sum *orchestrator.Summary) string {
	statuses := make([]string, 0, len(sum.Statuses))
	for s, n := range sum.Statuses {
		statuses = append(statuses, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(statuses)
	return fmt.Sprintf("Checks: %d planned, %d saved\nResults: %s\nDuration: %s\nTime: %s",
		sum.Planned,
		sum.Saved,
		strings.Join(statuses, " "),
		sum.Finished.Sub(sum.Started).Round(time.Second),
		sum.Finished.Format(time.RFC3339))
}

func textMessage(text string) Message {
	var msg Message
	msg.MsgType = "text"
	msg.Content.Text = text
	return msg
}

func (n *Notifier) send(ctx context.Context, webhook string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send message failed with status code: %d", resp.StatusCode)
	}
	return nil
}

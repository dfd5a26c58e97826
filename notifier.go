package bqathena

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

// Notifier notifies the result of each run.
type Notifier interface {
	Notify(context.Context, *Result) error
}

// SlackNotifier is a notifier for Slack.
type SlackNotifier struct {
	Channel   string
	IconEmoji string
	Username  string
	Token     string

	HTTPClient *http.Client
}

type slackMessage struct {
	Channel     string            `json:"channel"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Username    string            `json:"username,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// Notify posts a summary of r to the Slack channel.
func (n *SlackNotifier) Notify(ctx context.Context, r *Result) error {
	m := n.message(r)
	log.Ctx(ctx).Debug().Str("channel", m.Channel).Msg(m.Text)

	if err := n.post(ctx, m); err != nil {
		return xerrors.Errorf("slack postMessage failed: %w", err)
	}
	return nil
}

// message lays the run out as one attachment: counts and paths first, then
// one field per Athena execution.
func (n *SlackNotifier) message(r *Result) *slackMessage {
	text := fmt.Sprintf("transfer %s succeeded: %s", r.RunID, r.Message())
	color := "good"
	if r.Error != nil {
		text = fmt.Sprintf("transfer %s failed: %s", r.RunID, r.Error)
		color = "danger"
	}

	fields := []slackField{
		{Title: "Events", Value: strconv.Itoa(r.Events), Short: true},
		{Title: "Sessions", Value: strconv.Itoa(r.Sessions), Short: true},
	}
	if r.Object != "" {
		fields = append(fields, slackField{Title: "Object", Value: r.Object})
	}
	if r.Archive != "" {
		fields = append(fields, slackField{Title: "Archive", Value: r.Archive})
	}
	for _, e := range r.Executions {
		fields = append(fields, slackField{
			Title: "athena " + e.Statement,
			Value: fmt.Sprintf("%s (%s)", e.ID, e.State),
			Short: true,
		})
	}

	return &slackMessage{
		Channel:     n.Channel,
		IconEmoji:   n.IconEmoji,
		Username:    n.Username,
		Text:        text,
		Attachments: []slackAttachment{{Color: color, Fields: fields}},
	}
}

func (n *SlackNotifier) post(ctx context.Context, m *slackMessage) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("failed to marshal json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, slackPostMessageURL, bytes.NewReader(payload))
	if err != nil {
		return xerrors.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+n.Token)

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return xerrors.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return xerrors.Errorf("slack answered %d: %s", resp.StatusCode, body)
	}

	var res slackResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return xerrors.Errorf("failed to unmarshal response body: %w", err)
	}
	if !res.OK {
		return xerrors.Errorf("slack rejected message: %s", res.Error)
	}

	return nil
}

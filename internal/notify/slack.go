package notify

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Slack posts alerts to an incoming-webhook URL, title in mrkdwn bold.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	return postJSON(ctx, s.Client, "slack", s.Webhook, slackPayload{
		Text: "*" + a.Title() + "*\n" + a.Body(),
	})
}

package notify

import (
	"context"
	"errors"
	"net/http"
	"time"
)

type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client

	// BaseURL is overridable for tests.
	BaseURL string
}

func NewTelegram(botToken, chatID string) *Telegram {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 10 * time.Second},
		BaseURL:  "https://api.telegram.org",
	}
}

type telegramPayload struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *Telegram) Send(ctx context.Context, a Alert) error {
	if t == nil || t.BotToken == "" {
		return errors.New("telegram disabled")
	}
	return postJSON(ctx, t.Client, "telegram", t.BaseURL+"/bot"+t.BotToken+"/sendMessage", telegramPayload{
		ChatID:    t.ChatID,
		Text:      "*" + a.Title() + "*\n" + a.Body(),
		ParseMode: "Markdown",
	})
}

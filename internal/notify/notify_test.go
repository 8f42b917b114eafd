package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Minute)
	now := time.Now()

	if !th.Allow("k", now) {
		t.Fatalf("first send must pass")
	}
	if th.Allow("k", now.Add(30*time.Second)) {
		t.Fatalf("send inside the window must be suppressed")
	}
	if !th.Allow("other", now) {
		t.Fatalf("keys are independent")
	}
	if !th.Allow("k", now.Add(2*time.Minute)) {
		t.Fatalf("send after the window must pass")
	}

	th.Allow("r", now)
	th.Reset("r")
	if !th.Allow("r", now.Add(time.Second)) {
		t.Fatalf("reset must clear the cooldown")
	}
}

func TestAlertRendering(t *testing.T) {
	a := Alert{
		Kind:     KindDowntime,
		SiteName: "Example",
		SiteURL:  "https://example.com",
		Message:  "Reason: timeout",
	}
	if !strings.Contains(a.Title(), "down") {
		t.Fatalf("downtime title: %q", a.Title())
	}
	body := a.Body()
	if !strings.Contains(body, "Example") || !strings.Contains(body, "URL: https://example.com") || !strings.Contains(body, "timeout") {
		t.Fatalf("body must carry name, url and message: %q", body)
	}

	// a display name that just repeats the URL is not rendered twice
	dup := Alert{Kind: KindTest, SiteName: "https://example.com", SiteURL: "https://example.com", Message: "m"}
	if strings.Count(dup.Body(), "https://example.com") != 1 {
		t.Fatalf("duplicate name must be skipped: %q", dup.Body())
	}
}

func TestSlack_SendPayload(t *testing.T) {
	var got struct {
		Text string `json:"text"`
	}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer s.Close()

	sl := NewSlack(s.URL)
	err := sl.Send(context.Background(), Alert{
		Kind:    KindDefacement,
		SiteURL: "https://example.com",
		Message: "Content changed.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(got.Text, "*") {
		t.Fatalf("slack text must open with a bold title: %q", got.Text)
	}
	if !strings.Contains(got.Text, "defacement") || !strings.Contains(got.Text, "https://example.com") {
		t.Fatalf("payload must carry title and site: %q", got.Text)
	}
}

func TestTelegram_SendPayload(t *testing.T) {
	var got struct {
		ChatID    string `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	var path string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(200)
	}))
	defer s.Close()

	tg := NewTelegram("token123", "chat42")
	tg.BaseURL = s.URL

	err := tg.Send(context.Background(), Alert{
		Kind:    KindDowntime,
		SiteURL: "https://example.com",
		Message: "Reason: timeout",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bottoken123/sendMessage" {
		t.Fatalf("unexpected path %q", path)
	}
	if got.ChatID != "chat42" || got.ParseMode != "Markdown" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !strings.Contains(got.Text, "down") || !strings.Contains(got.Text, "timeout") {
		t.Fatalf("payload must carry title and message: %q", got.Text)
	}
}

func TestTelegram_Non2xx(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer s.Close()

	tg := NewTelegram("bad", "chat")
	tg.BaseURL = s.URL
	if err := tg.Send(context.Background(), Alert{Kind: KindTest}); err == nil {
		t.Fatalf("want error on non-2xx")
	}
}

func TestNewDisabledWhenUnconfigured(t *testing.T) {
	if NewTelegram("", "chat") != nil || NewTelegram("tok", "") != nil {
		t.Fatalf("partial telegram config must disable the notifier")
	}
	if NewSlack("") != nil {
		t.Fatalf("empty webhook must disable slack")
	}
}

func TestMulti_SkipsNilAndCollectsFirstError(t *testing.T) {
	calls := 0
	good := notifierFunc(func(context.Context, Alert) error { calls++; return nil })
	m := Multi{nil, good, good}
	if err := m.Send(context.Background(), Alert{Kind: KindTest}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want both non-nil notifiers called, got %d", calls)
	}
}

type notifierFunc func(ctx context.Context, a Alert) error

func (f notifierFunc) Send(ctx context.Context, a Alert) error {
	return f(ctx, a)
}

// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("SERVER_ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("SERVER_PUBLIC_API_KEYS"))
	addr := strings.TrimSpace(os.Getenv("SERVER_ADDR"))
	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	origins := strings.TrimSpace(os.Getenv("SERVER_ALLOWED_ORIGINS"))
	tgToken := strings.TrimSpace(os.Getenv("NOTIFY_TELEGRAM_BOT_TOKEN"))
	tgChat := strings.TrimSpace(os.Getenv("NOTIFY_TELEGRAM_CHAT_ID"))

	if admin == "" {
		warn("SERVER_ADMIN_API_KEYS is empty; admin routes are open (dev mode).")
	}
	if pub == "" {
		warn("SERVER_PUBLIC_API_KEYS is empty; read routes are open (dev mode).")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"SERVER_ADMIN_API_KEYS": admin, "SERVER_PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if addr == "" {
		warn("SERVER_ADDR is empty; the default 127.0.0.1:8080 will be used.")
	} else {
		ok("SERVER_ADDR=" + addr)
	}

	switch driver {
	case "":
		warn("DB_DRIVER empty; the default sqlite driver will be used.")
	case "sqlite", "postgres", "memory":
		ok("DB_DRIVER=" + driver)
	default:
		fail("DB_DRIVER must be sqlite, postgres or memory, got " + driver)
	}
	if driver == "postgres" && dsn == "" {
		fail("DB_DSN is required for the postgres driver.")
	}
	if driver == "memory" {
		warn("memory driver keeps no history across restarts.")
	}

	if origins == "" {
		warn("SERVER_ALLOWED_ORIGINS empty; CORS allows all origins.")
	} else {
		ok("SERVER_ALLOWED_ORIGINS=" + origins)
	}

	if (tgToken == "") != (tgChat == "") {
		fail("NOTIFY_TELEGRAM_BOT_TOKEN and NOTIFY_TELEGRAM_CHAT_ID must be set together.")
	}
	if tgToken != "" {
		ok("telegram notifications configured")
	}

	ok("preflight passed")
}

// cmd/preflight/main.go
package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	addr := strings.TrimSpace(os.Getenv("ADDR"))
	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))
	logDir := strings.TrimSpace(os.Getenv("LOG_DIR"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	webhook := strings.TrimSpace(os.Getenv("ALERT_WEBHOOK_URL"))
	interval := strings.TrimSpace(os.Getenv("POLL_INTERVAL_MS"))

	if addr == "" {
		warn("ADDR is empty; the daemon will bind 127.0.0.1:8787.")
	} else if _, _, err := net.SplitHostPort(addr); err != nil {
		fail("ADDR is not host:port: " + addr)
	} else {
		ok("ADDR=" + addr)
	}

	if pub == "" && admin == "" {
		warn("no API keys set; every route is open. Fine for localhost, not for exposed binds.")
	}
	if admin == "" && pub != "" {
		warn("ADMIN_API_KEYS empty while PUBLIC_API_KEYS is set; admin routes will be open.")
	}

	// Normalize and sanity-check lists (no spaces around commas).
	for name, v := range map[string]string{"ADMIN_API_KEYS": admin, "PUBLIC_API_KEYS": pub} {
		if strings.Contains(v, " ") {
			warn(name + " contains spaces; use comma-separated with no spaces, e.g. key1,key2")
		}
	}

	if interval != "" {
		ms, err := strconv.Atoi(interval)
		switch {
		case err != nil:
			fail("POLL_INTERVAL_MS is not an integer: " + interval)
		case ms < 250:
			warn("POLL_INTERVAL_MS below 250 will be clamped to 250.")
		default:
			ok("POLL_INTERVAL_MS=" + interval)
		}
	}

	for name, dir := range map[string]string{"DATA_DIR": dataDir, "LOG_DIR": logDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fail(name + " is not writable: " + err.Error())
		}
		ok(name + "=" + dir)
	}

	if webhook != "" {
		u, err := url.Parse(webhook)
		if err != nil || u.Scheme == "" || u.Host == "" {
			fail("ALERT_WEBHOOK_URL is not a valid URL: " + webhook)
		}
		ok("ALERT_WEBHOOK_URL present")
	}

	ok("preflight passed")
}

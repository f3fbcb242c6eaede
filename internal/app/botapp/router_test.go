package botapp

import (
	"testing"
	"time"
)

func TestParseNewTokensArgs(t *testing.T) {
	planDays, qty, err := parseNewTokensArgs("15 20")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if planDays != 15 || qty != 20 {
		t.Fatalf("got plan=%d qty=%d, want 15 20", planDays, qty)
	}

	for _, bad := range []string{"", "15", "15 x", "a 20", "15 20 5"} {
		if _, _, err := parseNewTokensArgs(bad); err == nil {
			t.Fatalf("parseNewTokensArgs(%q) succeeded, want error", bad)
		}
	}
}

func TestParseTempBanArgs(t *testing.T) {
	subject, duration, reason, err := parseTempBanArgs("123456 24h spamming the bot")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != 123456 {
		t.Fatalf("subject = %d, want 123456", subject)
	}
	if duration != 24*time.Hour {
		t.Fatalf("duration = %v, want 24h", duration)
	}
	if reason != "spamming the bot" {
		t.Fatalf("reason = %q", reason)
	}

	subject, duration, reason, err = parseTempBanArgs("42 30m")
	if err != nil {
		t.Fatalf("parse without reason: %v", err)
	}
	if subject != 42 || duration != 30*time.Minute || reason != "" {
		t.Fatalf("got subject=%d duration=%v reason=%q", subject, duration, reason)
	}

	for _, bad := range []string{"", "42", "-1 1h", "42 nonsense", "42 0h"} {
		if _, _, _, err := parseTempBanArgs(bad); err == nil {
			t.Fatalf("parseTempBanArgs(%q) succeeded, want error", bad)
		}
	}
}

func TestParseBanDurationDays(t *testing.T) {
	duration, err := parseBanDuration("3d")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if duration != 72*time.Hour {
		t.Fatalf("duration = %v, want 72h", duration)
	}

	if _, err := parseBanDuration("0d"); err == nil {
		t.Fatalf("zero days accepted, want error")
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{0, "0m"},
		{30, "less than a minute"},
		{90, "1m"},
		{3600, "1h 0m"},
		{5400, "1h 30m"},
		{90000, "25h 0m"},
	}

	for _, tc := range cases {
		if got := formatSeconds(tc.seconds); got != tc.want {
			t.Fatalf("formatSeconds(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}

	for _, tc := range cases {
		if got := formatBytes(tc.size); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

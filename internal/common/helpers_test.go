package common

import (
	"testing"
	"time"
)

func TestPluralizeCoins(t *testing.T) {
	cases := map[int64]string{
		0:   "монет",
		1:   "монета",
		2:   "монеты",
		4:   "монеты",
		5:   "монет",
		11:  "монет",
		12:  "монет",
		21:  "монета",
		22:  "монеты",
		111: "монет",
		-3:  "монеты",
	}
	for n, want := range cases {
		if got := PluralizeCoins(n); got != want {
			t.Errorf("PluralizeCoins(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestPluralizeDays(t *testing.T) {
	if got := PluralizeDays(1); got != "день" {
		t.Fatalf("got %q", got)
	}
	if got := PluralizeDays(3); got != "дня" {
		t.Fatalf("got %q", got)
	}
	if got := PluralizeDays(7); got != "дней" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatNumberAndBalance(t *testing.T) {
	if got := FormatNumber(2350); got != "2 350" {
		t.Fatalf("FormatNumber(2350) = %q", got)
	}
	if got := FormatNumber(1000005); got != "1 000 005" {
		t.Fatalf("FormatNumber(1000005) = %q", got)
	}
	if got := FormatBalance(88); got != "88 монет" {
		t.Fatalf("FormatBalance(88) = %q", got)
	}
	if got := FormatCoinsAmount(-2); got != "-2 монеты" {
		t.Fatalf("FormatCoinsAmount(-2) = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{25 * time.Minute, "25:00"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour + 5*time.Minute + 30*time.Second, "1:05:30"},
		{-time.Second, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.in); got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStartOfDayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2024, 3, 10, 23, 30, 0, 0, loc)
	got := StartOfDay(ts)
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	if !got.Equal(want) || got.Location() != loc {
		t.Fatalf("StartOfDay = %v, want %v", got, want)
	}
}

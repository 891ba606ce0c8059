package util

import (
	"testing"
	"time"
)

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("42", 7); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := ParseIntDefault("", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
	if got := ParseIntDefault("nope", 7); got != 7 {
		t.Fatalf("expected default, got %d", got)
	}
}

func TestParseFloatDefault(t *testing.T) {
	if got := ParseFloatDefault("0.75", 0.5); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if got := ParseFloatDefault("abc", 0.5); got != 0.5 {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestParseBoolDefault(t *testing.T) {
	cases := map[string]bool{
		"true": true,
		"1":    true,
		"yes":  true,
		"on":   true,
		"off":  false,
		"no":   false,
		"0":    false,
	}
	for in, want := range cases {
		if got := ParseBoolDefault(in, !want); got != want {
			t.Fatalf("ParseBoolDefault(%q) = %v, want %v", in, got, want)
		}
	}
	if got := ParseBoolDefault("", true); !got {
		t.Fatalf("expected default true")
	}
	if got := ParseBoolDefault("maybe", false); got {
		t.Fatalf("expected default false")
	}
}

func TestParseDurationDefault(t *testing.T) {
	if got := ParseDurationDefault("15s", time.Minute); got != 15*time.Second {
		t.Fatalf("expected 15s, got %v", got)
	}
	if got := ParseDurationDefault("30", time.Minute); got != 30*time.Second {
		t.Fatalf("expected bare integer as seconds, got %v", got)
	}
	if got := ParseDurationDefault("bad", time.Minute); got != time.Minute {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" BTCUSDT, ETHUSDT ,,SOLUSDT ")
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if SplitCSV("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}

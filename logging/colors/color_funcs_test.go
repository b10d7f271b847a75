package colors

import (
	"strings"
	"testing"
)

// TestPercentageThresholds verifies Percentage picks the color a console coverage summary expects at and around
// the healthy/warn boundaries.
func TestPercentageThresholds(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{100, Green(0)},
		{80, Green(0)},
		{79.9, Yellow(0)},
		{50, Yellow(0)},
		{49.9, Red(0)},
		{0, Red(0)},
	}

	for _, c := range cases {
		got := Percentage(c.pct)(0)
		if got != c.want {
			t.Errorf("Percentage(%v)(0) = %q, want %q", c.pct, got, c.want)
		}
	}
}

// TestDisableColorStripsANSI verifies that once DisableColor is called (as applyLoggingConfig does for
// config.LoggingConfig.NoColor), every ColorFunc returns its input with no ANSI escape codes.
func TestDisableColorStripsANSI(t *testing.T) {
	DisableColor()

	got := RedBold("danger")
	if strings.ContainsRune(got, '\x1b') {
		t.Errorf("RedBold(%q) after DisableColor still contains an ANSI escape: %q", "danger", got)
	}
	if got != "danger" {
		t.Errorf("RedBold(%q) after DisableColor = %q, want unchanged input", "danger", got)
	}
}

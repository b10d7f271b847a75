package colors

import "fmt"

// ColorFunc is an alias type for a coloring function that accepts anything and returns a colorized string
type ColorFunc = func(s any) string

// disabled suppresses ANSI coloring across every ColorFunc regardless of platform support, for
// config.LoggingConfig.NoColor. Unlike the Windows-only `enabled` capability flag in colorize_windows.go, this is
// a user request rather than a terminal capability check, so Colorize on both platforms must honor it.
var disabled bool

// DisableColor turns off ANSI coloring for every subsequent Colorize call in the process. covtrace calls this once,
// from applyLoggingConfig, when the resolved configuration sets LoggingConfig.NoColor.
func DisableColor() {
	disabled = true
}

// Reset is a ColorFunc that simply returns the input as a string. It is basically a no-op and is used for resetting the
// color context during complex logging operations.
func Reset(s any) string {
	return fmt.Sprintf("%v", s)
}

// Red is a ColorFunc that returns a red-colorized string of the provided input
func Red(s any) string {
	return Colorize(s, RED)
}

// RedBold is a ColorFunc that returns a red-bold-colorized string of the provided input
func RedBold(s any) string {
	return Colorize(Colorize(s, RED), BOLD)
}

// Green is a ColorFunc that returns a green-colorized string of the provided input
func Green(s any) string {
	return Colorize(s, GREEN)
}

// GreenBold is a ColorFunc that returns a green-bold-colorized string of the provided input
func GreenBold(s any) string {
	return Colorize(Colorize(s, GREEN), BOLD)
}

// Yellow is a ColorFunc that returns a yellow-colorized string of the provided input
func Yellow(s any) string {
	return Colorize(s, YELLOW)
}

// YellowBold is a ColorFunc that returns a yellow-bold-colorized string of the provided input
func YellowBold(s any) string {
	return Colorize(Colorize(s, YELLOW), BOLD)
}

// BlueBold is a ColorFunc that returns a blue-bold-colorized string of the provided input
func BlueBold(s any) string {
	return Colorize(Colorize(s, BLUE), BOLD)
}

// CyanBold is a ColorFunc that returns a cyan-bold-colorized string of the provided input
func CyanBold(s any) string {
	return Colorize(Colorize(s, CYAN), BOLD)
}

// coveragePercentThresholds mark where a line-coverage percentage stops counting as "healthy" (Green), then as
// "worth a look" (Yellow), falling through to "needs tests" (Red) below that.
const (
	coverageHealthyPercent = 80.0
	coverageWarnPercent    = 50.0
)

// Percentage picks the ColorFunc a console coverage summary should use for a line-coverage percentage: Green at or
// above coverageHealthyPercent, Yellow at or above coverageWarnPercent, Red below it.
func Percentage(pct float64) ColorFunc {
	switch {
	case pct >= coverageHealthyPercent:
		return Green
	case pct >= coverageWarnPercent:
		return Yellow
	default:
		return Red
	}
}

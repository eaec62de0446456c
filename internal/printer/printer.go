package printer

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func init() {
	// Keep color on for piped output; NO_COLOR still wins.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Success prints a green, check-prefixed confirmation line.
func Success(format string, a ...any) {
	green.Printf("✓ "+format, a...)
}

// Info prints an uncolored informational message.
func Info(format string, a ...any) {
	fmt.Printf(format, a...)
}

// Warning prints a yellow, bang-prefixed message for degraded but
// non-fatal conditions.
func Warning(format string, a ...any) {
	yellow.Printf("! "+format, a...)
}

// Heading prints a bold section heading, used for board and list titles
func Heading(format string, a ...any) {
	bold.Printf(format, a...)
}

// Event prints a live notification line in cyan with an arrow prefix
func Event(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Error writes a titled failure report to stderr and returns a bare error
// carrying only the title. Cobra runs with SilenceErrors, so the returned
// error sets the exit code without double-printing.
func Error(title string, explanation string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)
	fmt.Fprintf(os.Stderr, "%s\n", explanation)
	if len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr)
		for _, suggestion := range suggestions {
			fmt.Fprintf(os.Stderr, "  - %s\n", suggestion)
		}
	}
	return fmt.Errorf("%s", title)
}

// Println prints a plain message (for output that doesn't need coloring)
func Println(a ...any) {
	fmt.Println(a...)
}

// Printf prints a plain formatted message (for output that doesn't need coloring)
func Printf(format string, a ...any) {
	fmt.Printf(format, a...)
}

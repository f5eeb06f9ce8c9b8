package tui

import (
	"os"

	"golang.org/x/term"
)

// promptBlockers are checked in order; the first active one means nobody
// can answer the table-name prompt.
var promptBlockers = []struct {
	reason string
	active func() bool
}{
	{"GEOLOAD_NON_INTERACTIVE=1", func() bool { return os.Getenv("GEOLOAD_NON_INTERACTIVE") == "1" }},
	{"CI is set", func() bool { return os.Getenv("CI") != "" }},
	{"NO_COLOR is set", func() bool { return os.Getenv("NO_COLOR") != "" }},
	{"stdin is not a terminal", func() bool { return !term.IsTerminal(int(os.Stdin.Fd())) }},
	// The prompt renders on stderr so stdout stays pipeable.
	{"stderr is not a terminal", func() bool { return !term.IsTerminal(int(os.Stderr.Fd())) }},
}

// NonInteractiveReason returns why geoload will not prompt, or "" when an
// operator is at the terminal.
func NonInteractiveReason() string {
	for _, b := range promptBlockers {
		if b.active() {
			return b.reason
		}
	}
	return ""
}

// IsInteractive reports whether the confirmation prompt can be shown.
func IsInteractive() bool {
	return NonInteractiveReason() == ""
}

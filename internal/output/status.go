package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/sys/unix"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Success prints a one-line confirmation, e.g. "✓ window 3 created"
func Success(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Failure prints a one-line diagnostic, e.g. "✗ Error: no running instance"
func Failure(w io.Writer, msg string) {
	errorColor.Fprint(w, "✗ Error: ")
	fmt.Fprintln(w, msg)
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal
func TerminalWidth() int {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return 80
	}
	return int(ws.Col)
}

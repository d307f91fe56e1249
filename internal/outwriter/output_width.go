package outwriter

import (
	"io"
	"os"

	"github.com/covhub/covhub/internal/contract"
	"golang.org/x/term"
)

// reportFixedWidth reserves the numeric columns, label and table borders of the report table.
const reportFixedWidth = 70

// terminalWidth returns the width of w when it is a terminal, else 80.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80 // Conservative default for pipes and CI
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// maxPathWidth calculates the width available to file paths in the report table.
func maxPathWidth(w io.Writer) int {
	available := terminalWidth(w) - reportFixedWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}

// coverageLabel renders the Good/Fair/Poor label, coloured when cfg asks
// for colours and w is a terminal.
func coverageLabel(w io.Writer, cfg *contract.Config, coverage float64, lines int) string {
	if cfg.UseColors && isTerminal(w) {
		return contract.GetColorLabel(coverage, lines)
	}
	return contract.GetPlainLabel(coverage, lines)
}

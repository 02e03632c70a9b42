// Package report renders reconcile results for the terminal.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/schaermu/lfsmend/internal/lfs"
)

// NothingToDo is printed when every eligible file is already in LFS
const NothingToDo = "Nothing to do"

// Printer writes reports to one output. Styling is dropped automatically
// when the output is not a terminal.
type Printer struct {
	w       io.Writer
	title   lipgloss.Style
	heading lipgloss.Style
	success lipgloss.Style
	info    lipgloss.Style
}

// NewPrinter creates a printer for w
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w: w,
		title: r.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true),
		heading: r.NewStyle().Bold(true),
		success: r.NewStyle().
			Foreground(lipgloss.Color("#00FA9A")).
			Bold(true),
		info: r.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")),
	}
}

// Print renders rep. The body is the commit message the repair uses, so list
// and verify output matches what a repair would record.
func (p *Printer) Print(rep *lfs.Report) error {
	if rep.NothingToDo() {
		_, err := fmt.Fprintln(p.w, p.success.Render(NothingToDo))
		return err
	}

	bw := bufio.NewWriter(p.w)
	lines := strings.Split(strings.TrimRight(rep.Message, "\n"), "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			line = p.title.Render(line)
		case line != "" && !strings.HasPrefix(line, " "):
			line = p.heading.Render(line)
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}

	if rep.Committed {
		if _, err := fmt.Fprintf(bw, "\n%s\n", p.info.Render("Committed.")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

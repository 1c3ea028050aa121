package shrink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// TTYPrompter is the real, interactive Prompter: it writes each
// ActionSummary to Out and reads a single decision character from a
// separate input channel that survives the caller's stdin being piped
// data (spec.md §4.6: "a separate duplicated input channel that survives
// reading from piped data"). It opens /dev/tty for that channel, falling
// back to Fallback when /dev/tty isn't available (non-interactive test
// runs, containers without a controlling terminal).
type TTYPrompter struct {
	Out      io.Writer
	Fallback io.Reader

	tty *os.File
	in  *bufio.Reader
}

// NewTTYPrompter opens /dev/tty for reading decisions, writing summaries
// to out. If /dev/tty cannot be opened, decisions are read from fallback
// instead.
func NewTTYPrompter(out io.Writer, fallback io.Reader) *TTYPrompter {
	p := &TTYPrompter{Out: out, Fallback: fallback}

	tty, err := os.Open("/dev/tty")
	if err == nil {
		p.tty = tty
		p.in = bufio.NewReader(tty)
	} else {
		p.in = bufio.NewReader(fallback)
	}

	return p
}

// Close releases /dev/tty, if it was opened.
func (p *TTYPrompter) Close() error {
	if p.tty != nil {
		return p.tty.Close()
	}

	return nil
}

// Prompt implements Prompter: it displays the summary and reads r/s/q,
// case-insensitive, reprompting on anything else (spec.md §4.6 step 3).
func (p *TTYPrompter) Prompt(summary ActionSummary) (Decision, error) {
	fmt.Fprintf(p.Out, "\n%s\n", summary.ID)
	fmt.Fprintf(p.Out, "  program: %s\n", summary.Program)
	fmt.Fprintf(p.Out, "  args:    %s\n", strings.Join(summary.Args, " "))
	fmt.Fprintf(p.Out, "  mtime:   %s\n", summary.ModTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(p.Out, "  bytes:   %s min / %s max (recoverable / total referenced)\n",
		humanize.Bytes(summary.MinBytes), humanize.Bytes(summary.MaxBytes))

	for {
		fmt.Fprint(p.Out, "remove, skip, or quit? [r/s/q] ")

		line, err := p.in.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return DecisionQuit, nil
			}

			return DecisionSkip, fmt.Errorf("reading decision: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r":
			return DecisionRemove, nil
		case "s", "":
			return DecisionSkip, nil
		case "q":
			return DecisionQuit, nil
		default:
			fmt.Fprintf(p.Out, "unrecognized response %q\n", line)
		}
	}
}

package decide

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Terminal asks the operator on a terminal and reads a yes/no answer.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a terminal decider reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isTTY(os.Stdin) && isTTY(os.Stdout)
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Decide implements Decider. An empty answer or end of input aborts.
func (t *Terminal) Decide(ctx context.Context, p Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	type reply struct {
		line string
		err  error
	}

	for {
		fmt.Fprintf(t.out, "%s\n%s [y/N]: ", p, question(p))

		ch := make(chan reply, 1)
		go func() {
			line, err := t.in.ReadString('\n')
			ch <- reply{line, err}
		}()

		var r reply
		select {
		case <-ctx.Done():
			fmt.Fprintln(t.out)
			return false, ctx.Err()
		case r = <-ch:
		}

		switch strings.ToLower(strings.TrimSpace(r.line)) {
		case "y", "yes", "o", "oui":
			return true, nil
		case "", "n", "no", "non":
			if r.err != nil && r.err != io.EOF {
				return false, r.err
			}
			return false, nil
		}
		if r.err != nil {
			return false, nil
		}
		fmt.Fprintln(t.out, "please answer y or n")
	}
}

func question(p Prompt) string {
	switch p.Kind {
	case KindUnknownItem, KindOrphanFamily:
		return "Skip this item and continue?"
	case KindOverwrite:
		return "Replace the existing inventory?"
	case KindRetry:
		return fmt.Sprintf("Close the files and retry (attempt %d/%d)?", p.Attempt+1, p.Max)
	case KindRenameFallback:
		return "Save the inventory under a new name instead?"
	default:
		return "Continue?"
	}
}

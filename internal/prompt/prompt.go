// internal/prompt/prompt.go
//
// Single-keystroke menu.
//
// Context
// -------
// The operator picks a site by pressing one key, e.g.
//
//	example.com (e)English (s)Spanish (q)uit >
//
// On a terminal the key is read in raw mode so no Enter is needed.  When
// stdin is a pipe the first non-space byte of each line is used instead,
// which keeps the menu scriptable.
//
// Notes
// -----
//   - Ctrl-C and Ctrl-D in raw mode return ErrAborted.
//   - The prompt repeats until an allowed key arrives.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/yanizio/syncee/internal/config"
)

// QuitKey always ends the menu without a choice.
const QuitKey = "q"

// ErrAborted is returned on Ctrl-C, Ctrl-D, or end of input.
var ErrAborted = errors.New("prompt aborted")

// Prompter reads menu choices.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	raw bool
}

// New returns a Prompter on f.  Raw mode is used when f is a terminal.
func New(f *os.File, out io.Writer) *Prompter {
	fd := int(f.Fd())
	return &Prompter{in: bufio.NewReader(f), out: out, fd: fd, raw: term.IsTerminal(fd)}
}

// NewReader returns a line-mode Prompter on r.
func NewReader(r io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: out}
}

// Choose prints message and returns the first key that is in allowed.
func (p *Prompter) Choose(message string, allowed []string) (string, error) {
	first := true
	for {
		if !first {
			fmt.Fprint(p.out, p.newline())
		}
		first = false
		fmt.Fprintf(p.out, "%s > ", message)

		key, err := p.readKey()
		if err != nil {
			fmt.Fprint(p.out, p.newline())
			return "", err
		}
		if slices.Contains(allowed, key) {
			fmt.Fprint(p.out, p.newline())
			return key, nil
		}
	}
}

func (p *Prompter) newline() string {
	if p.raw {
		return "\r\n"
	}
	return "\n"
}

func (p *Prompter) readKey() (string, error) {
	if p.raw {
		old, err := term.MakeRaw(p.fd)
		if err != nil {
			return "", err
		}
		defer term.Restore(p.fd, old)

		b, err := p.in.ReadByte()
		if err != nil {
			return "", ErrAborted
		}
		if b == 0x03 || b == 0x04 {
			return "", ErrAborted
		}
		return string(b), nil
	}

	line, err := p.in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", ErrAborted
		}
		return "", nil
	}
	return line[:1], nil
}

// SiteMenu builds the menu text and allowed keys for cfg.  Keys are sorted;
// the quit key is always last.
func SiteMenu(title string, sites map[string]config.Site) (string, []string) {
	keys := make([]string, 0, len(sites)+1)
	for k := range sites {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(title)
	for _, k := range keys {
		label := sites[k].Label
		if label == "" {
			label = sites[k].SSHHost
		}
		fmt.Fprintf(&b, " (%s)%s", k, label)
	}
	b.WriteString(" (q)uit")
	return b.String(), append(keys, QuitKey)
}

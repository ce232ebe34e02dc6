// internal/dump/repair.go
//
// Lossy per-line encoding repair.
//
// Context
// -------
// Dumps come straight off a remote MySQL client in whatever bytes the
// tables hold.  Old ExpressionEngine installs routinely mix latin1 rows
// into utf8 tables, so a single dump can carry byte sequences that are not
// valid UTF-8.  The parser repairs each line on its own before matching:
// a bad byte only costs the characters around it, never the whole dump.
//
// Policy
// ------
//   - UTF8  : valid UTF-8 passes through; ill-formed bytes are dropped.
//   - Latin1: every byte is read as ISO-8859-1 and re-encoded as UTF-8;
//     anything left ill-formed is dropped.
//
// Notes
// -----
//   - Dropping uses U+FFFD as the marker, so a literal U+FFFD in the
//     source is dropped as well.
//   - Transformers are stateful; one Repairer must not be shared across
//     goroutines.
package dump

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Charset names the source encoding assumed for dump bytes.
type Charset string

const (
	UTF8   Charset = "utf8"
	Latin1 Charset = "latin1"
)

// Repairer turns raw dump lines into valid UTF-8 text.
type Repairer struct {
	t transform.Transformer
}

// NewRepairer returns a Repairer for the given source charset.  Unknown
// values behave like UTF8.
func NewRepairer(cs Charset) *Repairer {
	drop := runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError }))
	if cs == Latin1 {
		return &Repairer{t: transform.Chain(charmap.ISO8859_1.NewDecoder(), runes.ReplaceIllFormed(), drop)}
	}
	return &Repairer{t: transform.Chain(runes.ReplaceIllFormed(), drop)}
}

// Line repairs one line.
func (r *Repairer) Line(line []byte) string {
	out, _, err := transform.Bytes(r.t, line)
	if err != nil {
		return strings.ToValidUTF8(string(line), "")
	}
	return string(out)
}

// Repair applies the default UTF8 policy to a single line.
func Repair(line []byte) string { return NewRepairer(UTF8).Line(line) }

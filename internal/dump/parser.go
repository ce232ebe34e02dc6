// internal/dump/parser.go
//
// Vertical-dump record parser.
//
// Context
// -------
// `mysql --batch --raw --vertical` prints every row as a banner followed by
// `label: value` lines.  Raw mode means multi-line values spill onto the
// following physical lines without any prefix, so a record is rebuilt by
// appending every unlabeled line to the current content.
//
// Workflow
// --------
//  1. Split the dump after each '\n', keeping terminators.
//  2. Repair the line (see repair.go).
//  3. Fold it into the accumulator:
//     row banner  → emit the accumulator if complete, start a new one;
//     name label  → set name;
//     group, type, allow-code labels (templates only) → set field;
//     data label  → append the value plus an explicit "\n";
//     otherwise   → append the whole line verbatim.
//  4. At end of input emit the trailing accumulator if complete.
//
// The check order above is load-bearing.  Content lines that happen to
// look like a later label must still lose to an earlier one.
//
// Notes
// -----
//   - A record with a name but no content, or content but no name, is
//     dropped silently.  Blank variables are lost this way.
//   - Parse is lazy and restartable; each range over the sequence starts a
//     fresh pass over the same bytes.
package dump

import (
	"bytes"
	"iter"
	"strings"

	"github.com/yanizio/syncee/internal/resource"
)

// Parser parses dumps with a fixed repair policy.  The zero value uses UTF8.
type Parser struct {
	Charset Charset
}

// Parse is Parser{}.Parse.
func Parse(raw []byte, kind resource.Kind) iter.Seq[resource.Record] {
	return Parser{}.Parse(raw, kind)
}

// Parse returns the complete records of raw in dump order.
func (p Parser) Parse(raw []byte, kind resource.Kind) iter.Seq[resource.Record] {
	spec := kind.Spec()
	return func(yield func(resource.Record) bool) {
		rep := NewRepairer(p.Charset)
		var acc resource.Record
		for line := range lines(raw) {
			next, done, ok := fold(spec, acc, rep.Line(line))
			acc = next
			if ok && !yield(done) {
				return
			}
		}
		if acc.Complete() {
			yield(acc)
		}
	}
}

// fold advances the accumulator by one repaired line.  When the line is a
// row banner and the previous accumulator was complete, that record is
// returned as emitted with ok == true.
func fold(spec *resource.Spec, acc resource.Record, line string) (next, emitted resource.Record, ok bool) {
	text := strings.TrimSuffix(line, "\n")

	if spec.Row.MatchString(text) {
		return resource.Record{}, acc, acc.Complete()
	}
	if m := spec.Name.FindStringSubmatch(text); m != nil {
		acc.Name = m[1]
		return acc, resource.Record{}, false
	}
	if spec.Grouped() {
		if m := spec.Group.FindStringSubmatch(text); m != nil {
			acc.Group = m[1]
			return acc, resource.Record{}, false
		}
		if m := spec.Type.FindStringSubmatch(text); m != nil {
			acc.Type = m[1]
			return acc, resource.Record{}, false
		}
		if m := spec.AllowsCode.FindStringSubmatch(text); m != nil {
			acc.AllowsCode = m[1]
			return acc, resource.Record{}, false
		}
	}
	if m := spec.Data.FindStringSubmatch(text); m != nil {
		acc.Content = append(acc.Content, m[1], "\n")
		return acc, resource.Record{}, false
	}
	acc.Content = append(acc.Content, line)
	return acc, resource.Record{}, false
}

// lines yields raw lines including their '\n' terminator.  A final line
// without a terminator is yielded as-is.
func lines(raw []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for len(raw) > 0 {
			i := bytes.IndexByte(raw, '\n')
			if i < 0 {
				yield(raw)
				return
			}
			if !yield(raw[:i+1]) {
				return
			}
			raw = raw[i+1:]
		}
	}
}

// SiteName returns the first site_name value in a lookup dump, or "" when
// none is present.
func SiteName(raw []byte) string {
	rep := NewRepairer(UTF8)
	for line := range lines(raw) {
		text := strings.TrimSuffix(rep.Line(line), "\n")
		if m := resource.SiteLookup.Name.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

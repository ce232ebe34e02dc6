// internal/resource/kind.go
//
// Resource kinds and their per-kind dump table.
//
// Context
// -------
// ExpressionEngine keeps the three synced resource kinds in separate
// tables, and `mysql --vertical` renders each row as a block of
// `label: value` lines.  Every kind therefore needs three things: the
// SELECT that produces its dump, the labels that carry structural fields,
// and the output directory name.  `Spec` bundles those, compiled once at
// package init, and `Kind.Spec()` selects the variant with a plain switch.
//
// Notes
// -----
//   - Label patterns anchor on the known field names only, so free-text
//     content lines never look like metadata.
//   - Group, Type, and AllowsCode are nil for kinds that do not carry them.
//   - Oxford commas, two spaces after periods.
package resource

import (
	"fmt"
	"regexp"
)

// Kind identifies one category of synced content.
type Kind int

const (
	Templates Kind = iota
	Snippets
	Variables
)

// Kinds lists every kind in sync order.
var Kinds = []Kind{Templates, Snippets, Variables}

// String returns the lowercase plural used for directories and dump names.
func (k Kind) String() string {
	switch k {
	case Templates:
		return "templates"
	case Snippets:
		return "snippets"
	case Variables:
		return "variables"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Spec is the per-kind dump table.
type Spec struct {
	Kind  Kind
	Query string // SELECT with one %d verb for site_id

	Row        *regexp.Regexp
	Name       *regexp.Regexp
	Group      *regexp.Regexp
	Type       *regexp.Regexp
	AllowsCode *regexp.Regexp
	Data       *regexp.Regexp
}

// SQL renders the kind's query for one site.
func (s *Spec) SQL(siteID int) string { return fmt.Sprintf(s.Query, siteID) }

// Grouped reports whether records of this kind carry group, type, and
// allow-code fields.
func (s *Spec) Grouped() bool { return s.Group != nil }

// rowPattern matches the `mysql --vertical` row banner, e.g.
// "*************************** 12. row ***************************".
var rowPattern = regexp.MustCompile(`^\*{8,}\s+\d+\. row\s+\*{8,}$`)

// word matches `<non-word prefix><label>: <word>`.
func word(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\W*` + regexp.QuoteMeta(label) + `: (\w+)$`)
}

// data matches `<non-word prefix><label>: <anything>`.
func data(label string) *regexp.Regexp {
	return regexp.MustCompile(`^\W*` + regexp.QuoteMeta(label) + `: (.+)$`)
}

var specs = [...]Spec{
	Templates: {
		Kind: Templates,
		Query: "SELECT g.group_name, t.template_name, t.template_type, t.allow_php, t.template_data " +
			"FROM exp_templates t INNER JOIN exp_template_groups g USING (group_id) " +
			"WHERE t.site_id = %d",
		Row:        rowPattern,
		Name:       word("template_name"),
		Group:      word("group_name"),
		Type:       word("template_type"),
		AllowsCode: word("allow_php"),
		Data:       data("template_data"),
	},
	Snippets: {
		Kind:  Snippets,
		Query: "SELECT snippet_name, snippet_contents FROM exp_snippets WHERE site_id = %d",
		Row:   rowPattern,
		Name:  word("snippet_name"),
		Data:  data("snippet_contents"),
	},
	Variables: {
		Kind:  Variables,
		Query: "SELECT variable_name, variable_data FROM exp_global_variables WHERE site_id = %d",
		Row:   rowPattern,
		Name:  word("variable_name"),
		Data:  data("variable_data"),
	},
}

// Spec returns the dump table for k.  It panics on an unknown kind.
func (k Kind) Spec() *Spec {
	if k < 0 || int(k) >= len(specs) {
		panic(fmt.Sprintf("resource: unknown kind %d", int(k)))
	}
	return &specs[k]
}

//
// Site-name lookup
//

// SiteLookup is the one-off query that resolves a site's short name when
// the configuration leaves it blank.
var SiteLookup = struct {
	Query string
	Name  *regexp.Regexp
}{
	Query: "SELECT site_name FROM exp_sites WHERE site_id = %d",
	Name:  word("site_name"),
}

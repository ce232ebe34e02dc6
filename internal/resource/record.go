package resource

import "strings"

// YesToken is the allow_php value that marks a template as executable.
const YesToken = "y"

// Record is one entity extracted from a dump.  Group, Type, and AllowsCode
// are only populated for templates.
type Record struct {
	Name       string
	Content    []string
	Group      string
	Type       string
	AllowsCode string
}

// Complete reports whether the record has both a name and some content.
func (r Record) Complete() bool { return r.Name != "" && len(r.Content) > 0 }

// Text joins the content pieces exactly as accumulated.
func (r Record) Text() string { return strings.Join(r.Content, "") }

// Extension maps a template type and allow-code flag to a file extension.
// Unknown or empty types fall back to html.
func Extension(typ, allowsCode string) string {
	switch typ {
	case "css", "js", "xml":
		return typ
	case "webpage":
		if allowsCode == YesToken {
			return "php"
		}
		return "html"
	default:
		return "html"
	}
}

// Filename returns "<name>.<ext>" for r.
func (r Record) Filename() string {
	return r.Name + "." + Extension(r.Type, r.AllowsCode)
}

package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Direct fetches by querying MySQL itself and rendering the rows the way
// `mysql --batch --raw --vertical` would.
type Direct struct {
	DB *sqlx.DB
}

// Fetch runs query and returns the rows as a vertical dump.
func (d *Direct) Fetch(ctx context.Context, query string) ([]byte, error) {
	fail := func(err error) error { return &CommandError{Command: "mysql: " + query, Err: err} }

	rows, err := d.DB.QueryxContext(ctx, query)
	if err != nil {
		return nil, fail(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fail(err)
	}

	var out [][]string
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fail(err)
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = cell(v)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(err)
	}
	return Vertical(cols, out), nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

const stars = "***************************"

// Vertical renders rows in mysql's vertical format: a numbered banner per
// row, then one right-aligned `label: value` line per column.  Values are
// printed raw, so embedded newlines continue on unprefixed lines.
func Vertical(cols []string, rows [][]string) []byte {
	width := 0
	for _, c := range cols {
		width = max(width, len(c))
	}

	var b strings.Builder
	for i, r := range rows {
		fmt.Fprintf(&b, "%s %d. row %s\n", stars, i+1, stars)
		for j, c := range cols {
			v := ""
			if j < len(r) {
				v = r[j]
			}
			fmt.Fprintf(&b, "%*s: %s\n", width, c, v)
		}
	}
	return []byte(b.String())
}

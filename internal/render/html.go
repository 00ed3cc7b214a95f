package render

import (
	"html"
	"strings"

	"github.com/nlquery/nlquery/internal/resultset"
)

// EmptyMarker is returned for an empty result or a payload that was not a list.
const EmptyMarker = "<em>(empty result)</em>"

// HTML renders result sets as <table> markup. Column set and order come from the first
// record only: later records lose fields the first one lacks and show blanks for
// fields they miss. Header and cell text is escaped.
type HTML struct{}

func (HTML) Table(rs resultset.ResultSet) string {
	if len(rs) == 0 {
		return EmptyMarker
	}
	columns := rs.Columns()

	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, column := range columns {
		b.WriteString("<th>")
		b.WriteString(html.EscapeString(column))
		b.WriteString("</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, record := range rs {
		b.WriteString("<tr>")
		for _, column := range columns {
			value, _ := record.Get(column)
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(FormatValue(value)))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func (HTML) Error(message string) string {
	return `<span class="error">❌ ` + html.EscapeString(message) + `</span>`
}

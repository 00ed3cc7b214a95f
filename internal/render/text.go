package render

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nlquery/nlquery/internal/resultset"
)

const TextEmptyMarker = "(empty result)"

// Text renders result sets as box-drawn terminal tables with the same column rules as
// HTML.
type Text struct {
	Style *table.Style
}

func (t Text) Table(rs resultset.ResultSet) string {
	if len(rs) == 0 {
		return TextEmptyMarker
	}
	columns := rs.Columns()

	writer := table.NewWriter()
	if t.Style != nil {
		writer.SetStyle(*t.Style)
	} else {
		writer.SetStyle(table.StyleLight)
	}

	header := make(table.Row, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	writer.AppendHeader(header)

	for _, record := range rs {
		row := make(table.Row, len(columns))
		for i, column := range columns {
			value, _ := record.Get(column)
			row[i] = FormatValue(value)
		}
		writer.AppendRow(row)
	}
	return fmt.Sprintf("%s\n(%d rows)", writer.Render(), len(rs))
}

// Error starts on its own line since it may follow a table.
func (Text) Error(message string) string {
	return "\nerror: " + message
}

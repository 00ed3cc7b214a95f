package executor

import (
	"context"
	"fmt"
	"strings"
)

const informationSchemaColumnsSQL = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = %s
ORDER BY table_name, ordinal_position`

const sqliteColumnsSQL = `
SELECT m.name, p.name, p.type
FROM sqlite_master AS m
JOIN pragma_table_info(m.name) AS p
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
ORDER BY m.name, p.cid`

// BookkeepingTablePrefix marks tables owned by nlquery itself. They are left out of the
// schema description.
const BookkeepingTablePrefix = "nlquery_"

type Column struct {
	Name string
	Type string
}

type Table struct {
	Name    string
	Columns []Column
}

func (e *Executor) schemaQuery() (string, error) {
	switch e.dialect {
	case DialectPostgres, DialectDuckDB:
		return fmt.Sprintf(informationSchemaColumnsSQL, "current_schema()"), nil
	case DialectMySQL:
		return fmt.Sprintf(informationSchemaColumnsSQL, "DATABASE()"), nil
	case DialectSQLite:
		return sqliteColumnsSQL, nil
	default:
		return "", fmt.Errorf("schema description is not supported for dialect %q", e.dialect)
	}
}

// Tables lists the user tables of the current schema with their columns in
// declaration order. Bookkeeping tables are skipped.
func (e *Executor) Tables(ctx context.Context) ([]Table, error) {
	query, err := e.schemaQuery()
	if err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schema columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan schema column: %w", err)
		}
		if strings.HasPrefix(tableName, BookkeepingTablePrefix) {
			continue
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, Table{Name: tableName})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, Column{Name: columnName, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schema columns: %w", err)
	}
	return tables, nil
}

// DescribeSchema renders Tables as the plain-text description used in prompts.
func (e *Executor) DescribeSchema(ctx context.Context) (string, error) {
	tables, err := e.Tables(ctx)
	if err != nil {
		return "", err
	}
	if len(tables) == 0 {
		return "", fmt.Errorf("no tables found in %s database", e.dialect)
	}
	return FormatSchema(tables), nil
}

func FormatSchema(tables []Table) string {
	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "table: %s\n", table.Name)
		for _, column := range table.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", column.Name, strings.ToUpper(column.Type))
		}
	}
	return b.String()
}

package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestExecuteKeepsColumnOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectDuckDB})

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT name, id FROM employees`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "id"}).
			AddRow([]byte("ann"), int64(1)).
			AddRow("bob", nil))
	mock.ExpectRollback()

	result, err := executor.Execute(context.Background(), "SELECT name, id FROM employees;;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	encoded, err := json.Marshal(result.Rows)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != `[{"name":"ann","id":1},{"name":"bob","id":null}]` {
		t.Fatalf("rows = %s", encoded)
	}
	if result.Truncated {
		t.Fatal("unexpected truncation")
	}
	assertSQLMock(t, mock)
}

func TestExecuteEmptyResultIsEmptyList(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectSQLite})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM t WHERE 1 = 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	result, err := executor.Execute(context.Background(), "SELECT id FROM t WHERE 1 = 0")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Fatalf("rows = %#v", result.Rows)
	}
	assertSQLMock(t, mock)
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectDuckDB, RowLimit: 2})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT n FROM range`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1).AddRow(2).AddRow(3))
	mock.ExpectRollback()

	result, err := executor.Execute(context.Background(), "SELECT n FROM range")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("rows=%d truncated=%v", len(result.Rows), result.Truncated)
	}
	assertSQLMock(t, mock)
}

func TestExecuteUsesReadOnlyTransactionOnPostgres(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectPostgres})

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) AS n FROM employees`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(42)))
	mock.ExpectRollback()

	result, err := executor.Execute(context.Background(), "SELECT count(*) AS n FROM employees;")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	value, _ := result.Rows[0].Get("n")
	if value != int64(42) {
		t.Fatalf("n = %#v", value)
	}
	assertSQLMock(t, mock)
}

func TestExecuteWrapsQueryError(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectDuckDB})

	boom := errors.New("Table with name nope does not exist")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM nope`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := executor.Execute(context.Background(), "SELECT * FROM nope")
	if !errors.Is(err, boom) {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteRejectsWritesWithoutTouchingDatabase(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectMySQL})

	for _, statement := range []string{
		"DELETE FROM employees",
		"  drop table employees;",
		"SELECT 1; DROP TABLE employees",
		"WITH t AS (SELECT 1) DELETE FROM employees",
		"SELECT 1 -- it's fine\n; DELETE FROM employees",
		"",
		";",
	} {
		if _, err := executor.Execute(context.Background(), statement); err == nil {
			t.Fatalf("Execute(%q) expected error", statement)
		}
	}
	assertSQLMock(t, mock)
}

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		sql     string
		want    string
		wantErr error
	}{
		{sql: "SELECT 1;", want: "SELECT 1"},
		{sql: "with x as (select 1) select * from x", want: "with x as (select 1) select * from x"},
		{sql: "(SELECT 1) UNION (SELECT 2)", want: "(SELECT 1) UNION (SELECT 2)"},
		{sql: "-- count\nSELECT 1", want: "-- count\nSELECT 1"},
		{sql: "/* hi */ SHOW TABLES;", want: "/* hi */ SHOW TABLES"},
		{sql: "SELECT ';' AS sep", want: "SELECT ';' AS sep"},
		{sql: "SELECT 'it''s; fine' AS s", want: "SELECT 'it''s; fine' AS s"},
		{sql: "SELECT REPLACE(name, 'a', 'b') FROM employees", want: "SELECT REPLACE(name, 'a', 'b') FROM employees"},
		{sql: "SELECT 'DELETE FROM t' AS s, \"update\" FROM t -- drop later\n", want: "SELECT 'DELETE FROM t' AS s, \"update\" FROM t -- drop later"},
		{sql: "SELECT t.update FROM t /* insert */", want: "SELECT t.update FROM t /* insert */"},
		{sql: "WITH t AS (SELECT 1) DELETE FROM employees", wantErr: ErrNotReadOnly},
		{sql: "with gone as (delete from employees returning *) select * from gone", wantErr: ErrNotReadOnly},
		{sql: "EXPLAIN ANALYZE DELETE FROM employees", wantErr: ErrNotReadOnly},
		{sql: "SELECT 1 -- it's a comment\n; DELETE FROM employees", wantErr: ErrMultipleStmt},
		{sql: "SELECT 1 /* ' */; DROP TABLE t", wantErr: ErrMultipleStmt},
		{sql: "查询无结果", wantErr: ErrNotReadOnly},
		{sql: "UPDATE t SET a = 1", wantErr: ErrNotReadOnly},
		{sql: "SELECT 1; SELECT 2", wantErr: ErrMultipleStmt},
		{sql: "  ", wantErr: ErrEmptySQL},
	}
	for _, tt := range tests {
		got, err := CheckReadOnly(tt.sql)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckReadOnly(%q) error = %v, want %v", tt.sql, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CheckReadOnly(%q) error = %v", tt.sql, err)
		}
		if got != tt.want {
			t.Fatalf("CheckReadOnly(%q) = %q, want %q", tt.sql, got, tt.want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	if got := normalizeValue([]byte("x")); got != "x" {
		t.Fatalf("normalizeValue([]byte) = %#v", got)
	}
	if got := normalizeValue(math.NaN()); got != "NaN" {
		t.Fatalf("normalizeValue(NaN) = %#v", got)
	}
	if got := normalizeValue(int64(3)); got != int64(3) {
		t.Fatalf("normalizeValue(int64) = %#v", got)
	}
}

func TestDescribeSchemaPostgres(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectPostgres})

	mock.ExpectQuery(`FROM information_schema.columns\s+WHERE table_schema = current_schema\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("departments", "dept_id", "integer").
			AddRow("departments", "dept_name", "character varying").
			AddRow("employees", "id", "integer"))

	got, err := executor.DescribeSchema(context.Background())
	if err != nil {
		t.Fatalf("DescribeSchema() error = %v", err)
	}
	want := "table: departments\n  - dept_id (INTEGER)\n  - dept_name (CHARACTER VARYING)\n\ntable: employees\n  - id (INTEGER)\n"
	if got != want {
		t.Fatalf("DescribeSchema() = %q, want %q", got, want)
	}
	assertSQLMock(t, mock)
}

func TestDescribeSchemaMySQLUsesCurrentDatabase(t *testing.T) {
	db, mock := newSQLMock(t)
	executor := New(db, Options{Dialect: DialectMySQL})

	mock.ExpectQuery(`WHERE table_schema = DATABASE\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}))

	if _, err := executor.DescribeSchema(context.Background()); err == nil {
		t.Fatal("expected error for a database without tables")
	}
	assertSQLMock(t, mock)
}

func TestDialect(t *testing.T) {
	for input, want := range map[string]string{
		"pgx":        DialectPostgres,
		"PostgreSQL": DialectPostgres,
		"mysql":      DialectMySQL,
		"duckdb":     DialectDuckDB,
		"sqlite3":    DialectSQLite,
	} {
		got, err := Dialect(input)
		if err != nil || got != want {
			t.Fatalf("Dialect(%q) = %q, %v", input, got, err)
		}
	}
	if _, err := Dialect("oracle"); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := Open(context.Background(), DBConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

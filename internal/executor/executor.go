package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nlquery/nlquery/internal/resultset"
)

var (
	ErrEmptySQL     = errors.New("sql is required")
	ErrNotReadOnly  = errors.New("only read-only statements are allowed")
	ErrMultipleStmt = errors.New("only a single statement is allowed")
)

var writeKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"MERGE":    true,
	"UPSERT":   true,
	"REPLACE":  true,
	"CREATE":   true,
	"DROP":     true,
	"ALTER":    true,
	"TRUNCATE": true,
	"ATTACH":   true,
	"DETACH":   true,
	"COPY":     true,
	"PRAGMA":   true,
	"GRANT":    true,
	"REVOKE":   true,
	"VACUUM":   true,
	"INSTALL":  true,
	"LOAD":     true,
	"CALL":     true,
	"EXPORT":   true,
	"IMPORT":   true,
}

var readOnlyKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
}

type Options struct {
	Dialect string
	// RowLimit caps the number of returned rows. Zero means unlimited.
	RowLimit int
}

type Result struct {
	Columns   []string
	Rows      resultset.ResultSet
	Truncated bool
	Duration  time.Duration
}

// Executor runs generated SQL against the query database. Every statement runs inside a
// transaction that is rolled back afterwards; on postgres and mysql that transaction is
// also read-only.
type Executor struct {
	db       *sql.DB
	dialect  string
	rowLimit int
}

func New(db *sql.DB, opts Options) *Executor {
	rowLimit := opts.RowLimit
	if rowLimit < 0 {
		rowLimit = 0
	}
	return &Executor{db: db, dialect: opts.Dialect, rowLimit: rowLimit}
}

func (e *Executor) Dialect() string {
	return e.dialect
}

func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (Result, error) {
	statement, err := CheckReadOnly(sqlText)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	// Writes that get past CheckReadOnly are discarded by the rollback. postgres and mysql
	// additionally refuse them inside a read-only transaction.
	tx, err := e.db.BeginTx(ctx, e.txOptions())
	if err != nil {
		return Result{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	result := Result{Columns: columns, Rows: resultset.ResultSet{}}
	for rows.Next() {
		if e.rowLimit > 0 && len(result.Rows) == e.rowLimit {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		var record resultset.Record
		for i, column := range columns {
			record.Set(column, normalizeValue(values[i]))
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Executor) txOptions() *sql.TxOptions {
	if e.dialect == DialectPostgres || e.dialect == DialectMySQL {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

// CheckReadOnly returns the statement without trailing semicolons, or an error when it
// is empty, holds more than one statement, does not start with a read-only keyword or
// contains a data-modifying keyword anywhere outside quotes and comments.
func CheckReadOnly(sqlText string) (string, error) {
	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		return "", ErrEmptySQL
	}
	separator, writeKeyword := scanStatement(statement)
	if separator {
		return "", ErrMultipleStmt
	}
	keyword := strings.ToUpper(firstKeyword(statement))
	if !readOnlyKeywords[keyword] {
		return "", fmt.Errorf("%w: %q", ErrNotReadOnly, keyword)
	}
	if writeKeyword != "" {
		return "", fmt.Errorf("%w: contains %s", ErrNotReadOnly, writeKeyword)
	}
	return statement, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return fmt.Sprint(typed)
		}
		return typed
	case float32:
		if math.IsNaN(float64(typed)) || math.IsInf(float64(typed), 0) {
			return fmt.Sprint(typed)
		}
		return typed
	default:
		return typed
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// firstKeyword skips leading comments and opening parentheses.
func firstKeyword(statement string) string {
	rest := statement
	for {
		rest = strings.TrimLeft(rest, " \t\r\n(")
		switch {
		case strings.HasPrefix(rest, "--"):
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return ""
			}
			rest = rest[end+1:]
		case strings.HasPrefix(rest, "/*"):
			end := strings.Index(rest, "*/")
			if end < 0 {
				return ""
			}
			rest = rest[end+2:]
		default:
			end := strings.IndexFunc(rest, func(r rune) bool {
				return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
			})
			if end < 0 {
				return rest
			}
			return rest[:end]
		}
	}
}

// scanStatement walks the statement outside quoted text and comments. It reports whether
// a semicolon occurs there and returns the first write keyword found, if any. Write
// keywords used as function names, like REPLACE(...), or as qualified names are ignored.
func scanStatement(statement string) (separator bool, writeKeyword string) {
	runes := []rune(statement)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' || r == '"' || r == '`':
			end := indexRune(runes, i+1, r)
			if end < 0 {
				return separator, writeKeyword
			}
			i = end
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			end := indexRune(runes, i+2, '\n')
			if end < 0 {
				return separator, writeKeyword
			}
			i = end
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			end := indexCommentEnd(runes, i+2)
			if end < 0 {
				return separator, writeKeyword
			}
			i = end + 1
		case r == ';':
			separator = true
		case isWordRune(r):
			start := i
			for i+1 < len(runes) && isWordRune(runes[i+1]) {
				i++
			}
			word := strings.ToUpper(string(runes[start : i+1]))
			qualified := start > 0 && runes[start-1] == '.'
			if writeKeyword == "" && writeKeywords[word] && !qualified && !followedByParen(runes, i+1) {
				writeKeyword = word
			}
		}
	}
	return separator, writeKeyword
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// indexCommentEnd returns the index of the '*' that closes a block comment.
func indexCommentEnd(runes []rune, from int) int {
	for i := from; i+1 < len(runes); i++ {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i
		}
	}
	return -1
}

func followedByParen(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '(':
			return true
		default:
			return false
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nlquery/nlquery/internal/executor"
	"github.com/nlquery/nlquery/internal/journal"
	"github.com/nlquery/nlquery/internal/nl2sql"
	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/resultset"
	"github.com/nlquery/nlquery/internal/sqlgen"
)

const (
	maxGenerateBodyBytes = 1 << 20

	MessageEmptyQuery = "query must not be empty"
	MessageNoMatch    = "no result: the question does not match any table in the schema"
)

func handleGenerateSQL(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	started := deps.Clock()
	question := readQuestion(w, r)
	if question == "" {
		observability.ObserveGenerate(observability.GenerateOutcomeInvalid)
		writeJSON(w, http.StatusBadRequest, sqlgen.ErrorResponse{Error: MessageEmptyQuery})
		return
	}

	ctx := r.Context()
	if deps.GenerateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.GenerateTimeout)
		defer cancel()
	}

	entry := journal.Entry{Question: question}
	finish := func(status journal.Status, outcome string) {
		entry.Status = status
		entry.Duration = deps.Clock().Sub(started)
		observability.ObserveGenerate(outcome)
		if deps.Journal != nil {
			deps.Journal.Append(ctx, entry)
		}
		deps.Logger.InfoContext(ctx, "generate_sql completed",
			slog.String("outcome", outcome),
			slog.Int("rows", entry.RowCount),
			slog.Duration("duration", entry.Duration),
		)
	}

	sqlText, err := translate(ctx, deps, question)
	if errors.Is(err, nl2sql.ErrNoMatch) {
		entry.Error = MessageNoMatch
		finish(journal.StatusTranslationFailed, observability.GenerateOutcomeTranslationFailed)
		writeJSON(w, http.StatusOK, sqlgen.Response{QueryResult: resultset.ResultSet{}, Error: MessageNoMatch})
		return
	}
	if err != nil {
		entry.Error = "failed to generate SQL: " + err.Error()
		finish(journal.StatusTranslationFailed, observability.GenerateOutcomeTranslationFailed)
		writeJSON(w, http.StatusInternalServerError, sqlgen.ErrorResponse{Error: entry.Error})
		return
	}
	entry.GeneratedSQL = sqlText

	result, err := execute(ctx, deps, sqlText)
	if err != nil {
		entry.Error = "failed to execute SQL: " + err.Error()
		finish(journal.StatusExecutionFailed, observability.GenerateOutcomeExecutionFailed)
		writeJSON(w, http.StatusOK, sqlgen.Response{
			GeneratedSQL: sqlText,
			QueryResult:  resultset.ResultSet{},
			Error:        entry.Error,
		})
		return
	}
	entry.RowCount = len(result.Rows)
	if result.Truncated {
		deps.Logger.WarnContext(ctx, "query result truncated", slog.Int("rows", entry.RowCount))
	}
	finish(journal.StatusOK, observability.GenerateOutcomeOK)
	writeJSON(w, http.StatusOK, sqlgen.Response{GeneratedSQL: sqlText, QueryResult: result.Rows})
}

// readQuestion treats an unreadable or malformed body like an empty one.
func readQuestion(w http.ResponseWriter, r *http.Request) string {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes))
	if err != nil {
		return ""
	}
	var req sqlgen.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Query)
}

func translate(ctx context.Context, deps Dependencies, question string) (string, error) {
	if deps.Translator == nil {
		return "", errors.New("translator is not configured")
	}
	schema := ""
	if deps.Schema != nil {
		var err error
		schema, err = deps.Schema.Schema(ctx)
		if err != nil {
			return "", err
		}
	}

	started := time.Now()
	result, err := deps.Translator.Translate(ctx, nl2sql.Request{Question: question, Schema: schema})
	observability.ObserveTranslate(time.Since(started))
	if err != nil {
		return "", err
	}
	return result.SQL, nil
}

func execute(ctx context.Context, deps Dependencies, sqlText string) (executor.Result, error) {
	if deps.Executor == nil {
		return executor.Result{}, errors.New("database is not configured")
	}
	result, err := deps.Executor.Execute(ctx, sqlText)
	if err != nil {
		return executor.Result{}, err
	}
	observability.ObserveExecute(len(result.Rows), result.Duration)
	if result.Rows == nil {
		result.Rows = resultset.ResultSet{}
	}
	return result, nil
}

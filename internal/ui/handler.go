package ui

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/nlquery/nlquery/internal/console"
)

//go:embed templates/index.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type Submitter interface {
	Submit(ctx context.Context, input string) (console.Outcome, error)
}

// NewHandler serves the console page. POST /ask blocks until the submission completes
// and then redirects back to the page.
func NewHandler(submitter Submitter, panel *Panel, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := indexTemplate.Execute(w, panel.Snapshot()); err != nil {
			logger.ErrorContext(r.Context(), "render console page", slog.Any("error", err))
		}
	})

	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		question := r.PostFormValue("query")
		panel.SetQuestion(question)

		outcome, err := submitter.Submit(r.Context(), question)
		switch {
		case err == nil:
			logger.DebugContext(r.Context(), "console question answered",
				slog.Uint64("token", outcome.Token),
				slog.Int("rows", len(outcome.Rows)),
			)
		case errors.Is(err, console.ErrEmptyQuestion), errors.Is(err, console.ErrSuperseded):
		default:
			logger.InfoContext(r.Context(), "console question failed", slog.Any("error", err))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	return mux
}

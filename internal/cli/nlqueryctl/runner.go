package nlqueryctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nlquery/nlquery/internal/console"
	"github.com/nlquery/nlquery/internal/render"
	"github.com/nlquery/nlquery/internal/sqlgen"
)

const (
	FormatText = "text"
	FormatHTML = "html"
)

type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("nlqueryctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	endpoint := fs.String("endpoint", firstNonEmpty(defaults.Endpoint, sqlgen.DefaultEndpoint), "generate_sql endpoint URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")
	format := fs.String("format", FormatText, "result format: text or html")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	switch command {
	case "ask":
		var renderer console.Renderer
		switch *format {
		case FormatText:
			renderer = render.Text{}
		case FormatHTML:
			renderer = render.HTML{}
		default:
			_, _ = fmt.Fprintf(stderr, "unknown format %q\n", *format)
			return 2
		}
		service, err := sqlgen.NewClient(sqlgen.ClientConfig{
			Endpoint:   *endpoint,
			APIKey:     *apiKey,
			HTTPClient: client,
		})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "invalid endpoint: %v\n", err)
			return 2
		}
		return runAsk(ctx, service, renderer, strings.Join(fs.Args()[1:], " "), stdout, stderr)
	case "health", "ready":
		target, err := siblingURL(*endpoint, "/v1/"+command)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "invalid endpoint: %v\n", err)
			return 2
		}
		return runGet(ctx, client, target, *apiKey, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func runAsk(ctx context.Context, service console.Service, renderer console.Renderer, question string, stdout, stderr io.Writer) int {
	surface := &terminalSurface{stderr: stderr}
	controller := console.NewController(surface, service, console.Options{
		Renderer:  renderer,
		AfterFunc: func(time.Duration, func()) console.Timer { return noTimer{} },
	})

	outcome, err := controller.Submit(ctx, question)
	if errors.Is(err, console.ErrEmptyQuestion) {
		return 2
	}
	if surface.sqlText != "" {
		_, _ = fmt.Fprintln(stdout, surface.sqlText)
		_, _ = fmt.Fprintln(stdout)
	}
	if result := strings.TrimLeft(surface.result, "\n"); result != "" {
		_, _ = fmt.Fprintln(stdout, result)
	}
	if err != nil || outcome.Message != "" {
		return 1
	}
	return 0
}

// terminalSurface prints status lines and alerts to stderr and keeps the SQL and result
// for printing once the submission completes.
type terminalSurface struct {
	stderr  io.Writer
	sqlText string
	result  string
}

func (s *terminalSurface) Alert(message string) {
	_, _ = fmt.Fprintln(s.stderr, message)
}

func (s *terminalSurface) SetBusy(bool) {}

func (s *terminalSurface) SetStatus(text string) {
	if text != "" {
		_, _ = fmt.Fprintln(s.stderr, text)
	}
}

func (s *terminalSurface) SetSQLText(text string) { s.sqlText = text }

func (s *terminalSurface) SetResultHTML(markup string) { s.result = markup }

func (s *terminalSurface) ShowResultPanel() {}

type noTimer struct{}

func (noTimer) Stop() bool { return false }

func runGet(ctx context.Context, client *http.Client, target, apiKey string, stdout, stderr io.Writer) int {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if resp.StatusCode >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		return 1
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(stdout, string(body))
	}
	return 0
}

// siblingURL replaces the path of the generate_sql endpoint.
func siblingURL(endpoint, path string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("endpoint must be an absolute URL: %q", endpoint)
	}
	parsed.Path = path
	parsed.RawQuery = ""
	return parsed.String(), nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: nlqueryctl [flags] <command>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  ask <question...>   generate SQL for a question and print the result")
	_, _ = fmt.Fprintln(w, "  health              GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready               GET /v1/ready")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

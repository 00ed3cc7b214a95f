package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nlquery/nlquery/internal/cli/nlqueryctl"
	"github.com/nlquery/nlquery/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("NLQUERY_CLI_TIMEOUT")), 2*time.Minute)
	options := nlqueryctl.Options{
		Endpoint: strings.TrimSpace(os.Getenv("NLQUERY_CONSOLE_ENDPOINT")),
		APIKey:   strings.TrimSpace(os.Getenv("NLQUERY_CONSOLE_API_KEY")),
		Timeout:  timeout,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := nlqueryctl.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid NLQUERY_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}

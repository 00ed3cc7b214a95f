package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// envReader applies NLQUERY_-prefixed variables onto config fields and collects every
// parse failure so that one Load reports all bad values at once.
type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (r *envReader) raw(name string) (string, string, bool) {
	key := envPrefix + name
	value, ok := r.lookup(key)
	return key, strings.TrimSpace(value), ok
}

func (r *envReader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
}

func (r *envReader) Err() error {
	return errors.Join(r.errs...)
}

func (r *envReader) String(name string, dst *string) {
	if _, value, ok := r.raw(name); ok {
		*dst = value
	}
}

func (r *envReader) Duration(name string, dst *time.Duration) {
	key, value, ok := r.raw(name)
	if !ok {
		return
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) Bool(name string, dst *bool) {
	key, value, ok := r.raw(name)
	if !ok {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) Int(name string, dst *int) {
	key, value, ok := r.raw(name)
	if !ok {
		return
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) Float(name string, dst *float64) {
	key, value, ok := r.raw(name)
	if !ok {
		return
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(key, err)
		return
	}
	*dst = parsed
}

func (r *envReader) LogLevel(name string, dst *slog.Level) {
	key, value, ok := r.raw(name)
	if !ok {
		return
	}
	switch strings.ToLower(value) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		r.fail(key, fmt.Errorf("unknown level %q", value))
	}
}

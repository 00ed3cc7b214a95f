package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nlquery/nlquery/internal/config"
)

// SchemaSource supplies the table description placed in the translation prompt.
type SchemaSource interface {
	Schema(ctx context.Context) (string, error)
}

type StaticSchema string

func (s StaticSchema) Schema(context.Context) (string, error) {
	return string(s), nil
}

type SchemaDescriber interface {
	DescribeSchema(ctx context.Context) (string, error)
}

// CachedSchema reads the schema from the database once. Failed reads are retried on the
// next call.
type CachedSchema struct {
	describer SchemaDescriber

	mu     sync.Mutex
	value  string
	loaded bool
}

func NewCachedSchema(describer SchemaDescriber) *CachedSchema {
	return &CachedSchema{describer: describer}
}

func (c *CachedSchema) Schema(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.value, nil
	}
	value, err := c.describer.DescribeSchema(ctx)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}
	c.value = value
	c.loaded = true
	return value, nil
}

// LoadSchemaSource picks the configured schema text, then the schema file, then the
// database.
func LoadSchemaSource(cfg config.GenerateConfig, describer SchemaDescriber) (SchemaSource, error) {
	if text := strings.TrimSpace(cfg.Schema); text != "" {
		return StaticSchema(text), nil
	}
	if path := strings.TrimSpace(cfg.SchemaFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return nil, fmt.Errorf("schema file %s is empty", path)
		}
		return StaticSchema(text), nil
	}
	if describer == nil {
		return nil, errors.New("schema is not configured and no database is available to describe")
	}
	return NewCachedSchema(describer), nil
}

package nl2sql

import (
	"context"
	"errors"
)

// ErrNoMatch is returned when the model reports that the question cannot be answered
// from the described schema.
var ErrNoMatch = errors.New("question does not match any table in the schema")

type Request struct {
	Question string `json:"question"`
	// Schema is the plain-text table description placed in the prompt.
	Schema string `json:"schema"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

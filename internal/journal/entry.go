package journal

import "time"

type Status string

const (
	StatusOK                Status = "ok"
	StatusExecutionFailed   Status = "execution_failed"
	StatusTranslationFailed Status = "translation_failed"
)

// Entry records one /generate_sql exchange.
type Entry struct {
	ID           string
	Question     string
	GeneratedSQL string
	Status       Status
	Error        string
	RowCount     int
	Duration     time.Duration
	CreatedAt    time.Time
}

package sqlgen

import (
	"fmt"

	"github.com/nlquery/nlquery/internal/resultset"
)

const DefaultEndpoint = "http://localhost:5678/generate_sql"

type Request struct {
	Query string `json:"query"`
}

// Response is the body of a successful /generate_sql call. Error is set when SQL was
// generated but could not be executed.
type Response struct {
	GeneratedSQL string              `json:"generated_sql"`
	QueryResult  resultset.ResultSet `json:"query_result"`
	Error        string              `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// ServiceError is returned when the service answered with a non-2xx status.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("query service status=%d: %s", e.StatusCode, e.Message)
}

// TransportError covers network failures and bodies that are not valid JSON.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

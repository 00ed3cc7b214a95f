package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nlquery/nlquery/internal/observability"
	"github.com/nlquery/nlquery/internal/render"
	"github.com/nlquery/nlquery/internal/resultset"
	"github.com/nlquery/nlquery/internal/sqlgen"
)

const (
	AlertEmptyQuestion = "Please enter a question"
	StatusGenerating   = "Generating…"
	StatusDone         = "✅ Done"
	StatusFailed       = "❌ Failed"
	NoSQLText          = "(no SQL)"
	NetworkErrorPrefix = "Network error: "

	DefaultStatusClearDelay = 2500 * time.Millisecond
)

var (
	ErrEmptyQuestion = errors.New("question must not be empty")
	// ErrSuperseded is returned for a completion that arrived after a newer submission
	// started. Such completions never reach the surface.
	ErrSuperseded = errors.New("submission superseded by a newer one")
)

// Surface is the display the controller drives. Implementations must not call back into
// the controller from these methods.
type Surface interface {
	Alert(message string)
	SetBusy(busy bool)
	SetStatus(text string)
	SetSQLText(text string)
	SetResultHTML(markup string)
	ShowResultPanel()
}

type Service interface {
	Generate(ctx context.Context, question string) (sqlgen.Response, error)
}

type Renderer interface {
	Table(rs resultset.ResultSet) string
	Error(message string) string
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseDone:
		return "done"
	default:
		return "idle"
	}
}

// State is the controller's view state. Token is the id of the pending or last
// completed submission and is zero while idle.
type State struct {
	Phase Phase
	Token uint64
}

type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeStale     OutcomeKind = "stale"
)

type Outcome struct {
	Token uint64
	Kind  OutcomeKind
	SQL   string
	Rows  resultset.ResultSet
	// Message holds the failure text, or the execution error the service attached to an
	// otherwise successful reply.
	Message string
}

type Timer interface {
	Stop() bool
}

type Options struct {
	Renderer         Renderer
	StatusClearDelay time.Duration
	Logger           *slog.Logger
	AfterFunc        func(d time.Duration, f func()) Timer
}

type Controller struct {
	surface    Surface
	service    Service
	renderer   Renderer
	clearDelay time.Duration
	logger     *slog.Logger
	afterFunc  func(d time.Duration, f func()) Timer

	mu         sync.Mutex
	lastToken  uint64
	state      State
	cancel     context.CancelFunc
	clearTimer Timer
}

func NewController(surface Surface, service Service, opts Options) *Controller {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = render.HTML{}
	}
	delay := opts.StatusClearDelay
	if delay <= 0 {
		delay = DefaultStatusClearDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Controller{
		surface:    surface,
		service:    service,
		renderer:   renderer,
		clearDelay: delay,
		logger:     logger,
		afterFunc:  afterFunc,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit runs one question through the service and reflects the result on the surface.
// A submission started while another is pending cancels the older one; the older call
// then returns ErrSuperseded. Service failures are displayed and also returned.
func (c *Controller) Submit(ctx context.Context, input string) (Outcome, error) {
	question := strings.TrimSpace(input)
	if question == "" {
		c.mu.Lock()
		c.surface.Alert(AlertEmptyQuestion)
		c.mu.Unlock()
		observability.ObserveConsoleSubmission("invalid")
		return Outcome{}, ErrEmptyQuestion
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	token := c.begin(cancel)
	c.logger.DebugContext(ctx, "console submission started", slog.Uint64("token", token))

	resp, err := c.service.Generate(reqCtx, question)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.lastToken {
		observability.ObserveConsoleSubmission("stale")
		c.logger.DebugContext(ctx, "console submission superseded", slog.Uint64("token", token))
		return Outcome{Token: token, Kind: OutcomeStale}, ErrSuperseded
	}
	c.cancel = nil

	outcome := c.apply(token, resp, err)

	c.state = State{Phase: PhaseDone, Token: token}
	c.surface.SetBusy(false)
	c.clearTimer = c.afterFunc(c.clearDelay, func() { c.clearStatus(token) })

	if err != nil {
		observability.ObserveConsoleSubmission("failed")
		c.logger.WarnContext(ctx, "console submission failed",
			slog.Uint64("token", token),
			slog.Any("error", err),
		)
		return outcome, err
	}
	observability.ObserveConsoleSubmission("ok")
	return outcome, nil
}

func (c *Controller) begin(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.clearTimer != nil {
		c.clearTimer.Stop()
		c.clearTimer = nil
	}
	c.lastToken++
	c.cancel = cancel
	c.state = State{Phase: PhasePending, Token: c.lastToken}

	c.surface.SetBusy(true)
	c.surface.SetStatus(StatusGenerating)
	c.surface.SetSQLText("")
	c.surface.SetResultHTML("")
	c.surface.ShowResultPanel()
	return c.lastToken
}

// apply writes a completed exchange to the surface. Caller holds c.mu.
func (c *Controller) apply(token uint64, resp sqlgen.Response, err error) Outcome {
	if err != nil {
		message := err.Error()
		var serviceErr *sqlgen.ServiceError
		if errors.As(err, &serviceErr) {
			message = serviceErr.Message
		} else {
			message = NetworkErrorPrefix + message
		}
		c.surface.SetSQLText("")
		c.surface.SetResultHTML(c.renderer.Error(message))
		c.surface.SetStatus(StatusFailed)
		return Outcome{Token: token, Kind: OutcomeFailed, Message: message}
	}

	sqlText := resp.GeneratedSQL
	if sqlText == "" {
		sqlText = NoSQLText
	}
	markup := c.renderer.Table(resp.QueryResult)
	if resp.Error != "" {
		markup += c.renderer.Error(resp.Error)
	}
	c.surface.SetSQLText(sqlText)
	c.surface.SetResultHTML(markup)
	c.surface.SetStatus(StatusDone)
	return Outcome{
		Token:   token,
		Kind:    OutcomeSucceeded,
		SQL:     resp.GeneratedSQL,
		Rows:    resp.QueryResult,
		Message: resp.Error,
	}
}

func (c *Controller) clearStatus(token uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.lastToken {
		return
	}
	c.clearTimer = nil
	c.surface.SetStatus("")
}

package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nlquery/nlquery/internal/console"
	"github.com/nlquery/nlquery/internal/resultset"
	"github.com/nlquery/nlquery/internal/sqlgen"
)

type fakeService struct {
	resp sqlgen.Response
	err  error
}

func (f fakeService) Generate(context.Context, string) (sqlgen.Response, error) {
	return f.resp, f.err
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return true }

func newTestConsole(service console.Service) (http.Handler, *Panel) {
	panel := NewPanel()
	controller := console.NewController(panel, service, console.Options{
		AfterFunc: func(time.Duration, func()) console.Timer { return stoppedTimer{} },
	})
	return NewHandler(controller, panel, nil), panel
}

func ask(t *testing.T, h http.Handler, question string) {
	t.Helper()
	form := url.Values{"query": {question}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("ask status = %d location = %q", rr.Code, rr.Header().Get("Location"))
	}
}

func page(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("page status = %d", rr.Code)
	}
	return rr.Body.String()
}

func TestIndexHidesResultPanelInitially(t *testing.T) {
	h, _ := newTestConsole(fakeService{})

	body := page(t, h)
	if !strings.Contains(body, `<section id="result" hidden>`) {
		t.Fatalf("expected hidden result panel, body = %s", body)
	}
	if strings.Contains(body, "disabled") {
		t.Fatal("submit button must be enabled while idle")
	}
}

func TestAskRendersSQLAndTable(t *testing.T) {
	rows := resultset.ResultSet{resultset.NewRecord(resultset.Field{Name: "name", Value: "<Ada>"})}
	h, _ := newTestConsole(fakeService{resp: sqlgen.Response{GeneratedSQL: "SELECT name FROM t", QueryResult: rows}})

	ask(t, h, "who?")
	body := page(t, h)

	for _, want := range []string{
		`<section id="result">`,
		`<pre id="sql">SELECT name FROM t</pre>`,
		`<th>name</th>`,
		`<td>&lt;Ada&gt;</td>`,
		`✅ Done`,
		`>who?</textarea>`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q:\n%s", want, body)
		}
	}
}

func TestAskShowsServiceFailure(t *testing.T) {
	h, _ := newTestConsole(fakeService{err: &sqlgen.TransportError{Err: errors.New("connection refused")}})

	ask(t, h, "who?")
	body := page(t, h)
	if !strings.Contains(body, "Network error: connection refused") {
		t.Fatalf("page missing network error:\n%s", body)
	}
	if !strings.Contains(body, "❌ Failed") {
		t.Fatalf("page missing failed status:\n%s", body)
	}
}

func TestEmptyQuestionAlertsOnce(t *testing.T) {
	h, panel := newTestConsole(fakeService{})

	ask(t, h, "   ")
	body := page(t, h)
	if !strings.Contains(body, console.AlertEmptyQuestion) {
		t.Fatalf("page missing alert:\n%s", body)
	}
	if panel.Snapshot().PanelVisible {
		t.Fatal("empty question must not reveal the result panel")
	}
	if strings.Contains(page(t, h), `role="alert"`) {
		t.Fatal("alert must be shown only once")
	}
}

func TestStaticStylesheetServed(t *testing.T) {
	h, _ := newTestConsole(fakeService{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "border-collapse") {
		t.Fatal("unexpected stylesheet content")
	}
}

func TestPanelSnapshotConsumesAlert(t *testing.T) {
	panel := NewPanel()
	panel.Alert("hello")
	panel.SetBusy(true)

	first := panel.Snapshot()
	if first.Alert != "hello" || !first.Busy {
		t.Fatalf("first snapshot = %#v", first)
	}
	second := panel.Snapshot()
	if second.Alert != "" || !second.Busy {
		t.Fatalf("second snapshot = %#v", second)
	}
}

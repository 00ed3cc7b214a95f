package ui

import (
	"html/template"
	"sync"
)

// View is the page state rendered by the index template.
type View struct {
	Busy         bool
	Status       string
	SQLText      string
	ResultHTML   template.HTML
	PanelVisible bool
	Alert        string
	Question     string
}

// Panel is the browser-facing console.Surface. It keeps the last written state so every
// page load shows the current view.
type Panel struct {
	mu   sync.Mutex
	view View
}

func NewPanel() *Panel {
	return &Panel{}
}

func (p *Panel) Alert(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Alert = message
}

func (p *Panel) SetBusy(busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Busy = busy
}

func (p *Panel) SetStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Status = text
}

func (p *Panel) SetSQLText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.SQLText = text
}

// SetResultHTML stores markup produced by render.HTML, which escapes every value.
func (p *Panel) SetResultHTML(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.ResultHTML = template.HTML(markup)
}

func (p *Panel) ShowResultPanel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.PanelVisible = true
}

func (p *Panel) SetQuestion(question string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view.Question = question
}

// Snapshot returns the current view. A pending alert is shown once.
func (p *Panel) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	view := p.view
	p.view.Alert = ""
	return view
}

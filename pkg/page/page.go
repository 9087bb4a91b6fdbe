// Package page renders the redirect page. The viewer's hostname is the only
// dynamic value and reaches the markup through a single template slot, so it
// is escaped for the context it lands in and nothing else is rewritten.
package page

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/spencer-p/tidelink/pkg/data"
	"github.com/spencer-p/tidelink/pkg/sibling"
)

//go:embed templates/*.html.tmpl
var templates embed.FS

// DefaultFeatures describe what the dashboard offers.
var DefaultFeatures = []string{
	"GPS coordinate validation for NSW coastal locations",
	"Current tide level, status and trend",
	"Upcoming high and low tides",
	"48 hour tide chart",
	"Historical tide statistics for frequently queried locations",
}

// Options locate the sibling service relative to the viewer's host.
type Options struct {
	Scheme string
	Port   int
}

// Input fills the index template.
type Input struct {
	Host       string
	Features   []string
	Visitor    *data.Visitor
	LastSeen   string
	ConfigPath string
	GoPath     string
}

// ConfigInput fills the preferences form.
type ConfigInput struct {
	Host         string
	Action       string
	Name         string
	AutoRedirect bool
}

// Page holds the parsed templates.
type Page struct {
	opts   Options
	index  *template.Template
	config *template.Template
}

// New parses the embedded templates, filling in default scheme and port.
func New(opts Options) (*Page, error) {
	if opts.Scheme == "" {
		opts.Scheme = sibling.DefaultScheme
	}
	if opts.Port == 0 {
		opts.Port = sibling.DefaultPort
	}
	p := &Page{opts: opts}

	funcs := template.FuncMap{
		"sibling": p.SiblingURL,
		"port":    func() int { return p.opts.Port },
	}
	var err error
	p.index, err = template.New("index.html.tmpl").Funcs(funcs).ParseFS(templates, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}
	p.config, err = template.New("config.html.tmpl").Funcs(funcs).ParseFS(templates, "templates/config.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse config template: %w", err)
	}
	return p, nil
}

// SiblingURL is the dashboard address for a viewer on host.
func (p *Page) SiblingURL(host string) string {
	return sibling.URL(p.opts.Scheme, p.opts.Port, host)
}

// Render writes the redirect page for in.Host to w.
func (p *Page) Render(w io.Writer, in Input) error {
	if in.Features == nil {
		in.Features = DefaultFeatures
	}
	if err := p.index.Execute(w, in); err != nil {
		return fmt.Errorf("failed to execute index template: %w", err)
	}
	return nil
}

// RenderConfig writes the preferences form to w.
func (p *Page) RenderConfig(w io.Writer, in ConfigInput) error {
	if err := p.config.Execute(w, in); err != nil {
		return fmt.Errorf("failed to execute config template: %w", err)
	}
	return nil
}

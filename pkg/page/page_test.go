package page

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/spencer-p/tidelink/pkg/data"
	"github.com/spencer-p/tidelink/pkg/placeholder"
)

func mustNew(t *testing.T) *Page {
	t.Helper()
	p, err := New(Options{})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	return p
}

func render(t *testing.T, p *Page, in Input) string {
	t.Helper()
	var b bytes.Buffer
	if err := p.Render(&b, in); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	return b.String()
}

// links returns the href of every anchor with class button and the text of
// every code element.
func links(t *testing.T, page string) (hrefs, codes []string) {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("rendered page does not parse: %v", err)
	}
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				isButton := false
				href := ""
				for _, a := range n.Attr {
					if a.Key == "class" && a.Val == "button" {
						isButton = true
					}
					if a.Key == "href" {
						href = a.Val
					}
				}
				if isButton {
					hrefs = append(hrefs, href)
				}
			case "code":
				if n.FirstChild != nil {
					codes = append(codes, n.FirstChild.Data)
				} else {
					codes = append(codes, "")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return hrefs, codes
}

func TestRender(t *testing.T) {
	table := []struct {
		host string
		want string
	}{
		{"abc123.repl.co", "https://5000-abc123.repl.co"},
		{"", "https://5000-"},
		{"localhost", "https://5000-localhost"},
	}

	p := mustNew(t)
	for _, tc := range table {
		t.Run(tc.want, func(t *testing.T) {
			out := render(t, p, Input{Host: tc.host, ConfigPath: "/config", GoPath: "/go"})
			hrefs, codes := links(t, out)
			if diff := cmp.Diff([]string{tc.want}, hrefs); diff != "" {
				t.Errorf("link (-want,+got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{tc.want}, codes); diff != "" {
				t.Errorf("code block (-want,+got):\n%s", diff)
			}
		})
	}
}

func TestRenderHasNoMarkers(t *testing.T) {
	out := render(t, mustNew(t), Input{Host: "abc123.repl.co"})
	if strings.Contains(out, placeholder.HostToken) || strings.Contains(out, placeholder.DomainToken) {
		t.Errorf("rendered page carries a placeholder:\n%s", out)
	}

	doc, err := html.Parse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if n := placeholder.Substitute(doc, "other.repl.co"); n != 0 {
		t.Errorf("placeholder pass found %d markers in a rendered page", n)
	}
}

func TestRenderEscapesHost(t *testing.T) {
	out := render(t, mustNew(t), Input{Host: `evil"><script>alert(1)</script>`})
	if strings.Contains(out, "<script>") {
		t.Errorf("host was not escaped:\n%s", out)
	}
}

func TestRenderFeatures(t *testing.T) {
	out := render(t, mustNew(t), Input{Host: "h"})
	for _, f := range DefaultFeatures {
		if !strings.Contains(out, "<li>"+f+"</li>") {
			t.Errorf("missing feature %q", f)
		}
	}

	out = render(t, mustNew(t), Input{Host: "h", Features: []string{"Only this"}})
	if !strings.Contains(out, "<li>Only this</li>") || strings.Contains(out, DefaultFeatures[0]) {
		t.Errorf("custom features not used:\n%s", out)
	}
}

func TestRenderVisitor(t *testing.T) {
	p := mustNew(t)

	out := render(t, p, Input{Host: "h"})
	if strings.Contains(out, "Welcome back") {
		t.Errorf("anonymous page greets a visitor")
	}

	out = render(t, p, Input{
		Host:       "h",
		Visitor:    &data.Visitor{Name: "kai", AutoRedirect: true},
		LastSeen:   "Today at 4:27 PM",
		ConfigPath: "/config",
	})
	for _, want := range []string{"Welcome back, kai.", "Last visit: Today at 4:27 PM.", "Automatic redirect is on."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestSiblingURL(t *testing.T) {
	p, err := New(Options{Scheme: "http", Port: 3000})
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if got, want := p.SiblingURL("h.example"), "http://3000-h.example"; got != want {
		t.Errorf("got %q, wanted %q", got, want)
	}
	out := render(t, p, Input{Host: "h.example"})
	if !strings.Contains(out, "port 3000 of this host") {
		t.Errorf("port not rendered")
	}
}

func TestRenderConfig(t *testing.T) {
	p := mustNew(t)
	var b bytes.Buffer
	if err := p.RenderConfig(&b, ConfigInput{Host: "h", Action: "/config", Name: "kai", AutoRedirect: true}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	out := b.String()
	for _, want := range []string{`action="/config"`, `value="kai"`, `value="on" checked`, "https://5000-h"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

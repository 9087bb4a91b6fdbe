package placeholder

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// HostToken marks the hostname inside anchor hrefs.
	HostToken = "{window.location.hostname}"
	// DomainToken marks the hostname inside code samples and direct link text.
	DomainToken = "{REPLIT_DOMAIN}"
	// DirectLinkClass is the class of the container whose paragraphs are
	// rewritten.
	DirectLinkClass = "direct-link"
)

// scope records which of the rewritable ancestors enclose a node.
type scope struct {
	code       bool
	directLink bool
	para       bool
}

type substituter struct {
	host string
	n    int
}

// Substitute replaces every marker under doc with host and returns how many
// were replaced. Running it again on the same tree is a no-op, unless host
// itself contains a marker. The host is not validated; an empty host is
// substituted like any other.
func Substitute(doc *html.Node, host string) int {
	s := substituter{host: host}
	s.walk(doc, scope{})
	return s.n
}

// Rewrite parses an HTML document from r, substitutes host and renders the
// result to w.
func Rewrite(w io.Writer, r io.Reader, host string) (int, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, fmt.Errorf("failed to parse page: %w", err)
	}
	n := Substitute(doc, host)
	if err := html.Render(w, doc); err != nil {
		return n, fmt.Errorf("failed to render page: %w", err)
	}
	return n, nil
}

func (s *substituter) walk(n *html.Node, sc scope) {
	switch n.Type {
	case html.ElementNode:
		switch n.DataAtom {
		case atom.A:
			s.anchor(n)
		case atom.Code:
			sc.code = true
		case atom.P:
			// Only paragraphs below the container count, not the container
			// itself.
			sc.para = sc.para || sc.directLink
		}
		if hasClass(n, DirectLinkClass) {
			sc.directLink = true
		}
	case html.TextNode:
		if sc.code || sc.para {
			n.Data = s.replace(n.Data, DomainToken)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c, sc)
	}
}

func (s *substituter) anchor(n *html.Node) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == "href" {
			n.Attr[i].Val = s.replace(n.Attr[i].Val, HostToken)
		}
	}
}

func (s *substituter) replace(text, token string) string {
	count := strings.Count(text, token)
	if count == 0 {
		return text
	}
	s.n += count
	return strings.ReplaceAll(text, token, s.host)
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Namespace != "" || a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

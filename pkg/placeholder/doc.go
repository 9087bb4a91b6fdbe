// Package placeholder rewrites pages that carry literal hostname markers. A
// page written for the sandbox embeds the markers where the viewer's hostname
// belongs; Substitute replaces them in one synchronous pass over the parsed
// document. Only the designated spots are touched: anchor hrefs, code text and
// paragraphs inside the direct link container. Everything else renders exactly
// as it was parsed.
package placeholder

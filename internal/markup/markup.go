package markup

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	boldStarRe   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__([^_\n]+)__`)
	italicStarRe = regexp.MustCompile(`\*([^*\n]+)\*`)
	linkRe       = regexp.MustCompile(`\[([^\]\n]+)\]\([^)\n]*\)`)
	codeRe       = regexp.MustCompile("`([^`\n]*)`")
)

// StripMarkdown removes the markdown decorations language models like to add
// (headings, emphasis, links, inline code) so the text can be spoken.
// Paragraph structure is preserved.
func StripMarkdown(text string) string {
	text = headingRe.ReplaceAllString(text, "")
	text = boldStarRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	return text
}

// ToHTML renders story pages for the browser view. imageURLs[i] is shown
// after page i+1, mirroring how illustrations are woven into the speech markup.
func ToHTML(pages []string, imageURLs []string) string {
	var b strings.Builder
	for i, text := range pages {
		b.WriteString(`<div class="page" data-page="`)
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(`">`)
		emitPageText(&b, text)
		if i < len(imageURLs) && imageURLs[i] != "" {
			b.WriteString(`<img class="page-image" src="`)
			b.WriteString(html.EscapeString(imageURLs[i]))
			b.WriteString(`" alt="">`)
		}
		b.WriteString(`</div>`)
	}
	return b.String()
}

// emitPageText escapes the text and keeps bold and italic emphasis.
func emitPageText(b *strings.Builder, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	s = html.EscapeString(s)
	s = boldStarRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = boldUnderRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = italicStarRe.ReplaceAllString(s, "<em>$1</em>")
	b.WriteString(`<p class="page-text">`)
	b.WriteString(s)
	b.WriteString(`</p>`)
}

package markup

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	speakOpen  = "<speak>"
	speakClose = "</speak>"

	// WrapperOverhead is the byte size of the <speak></speak> pair that encloses
	// every rendered document and every envelope.
	WrapperOverhead = len(speakOpen) + len(speakClose)

	// SentencePause follows every sentence-terminating period.
	SentencePause = `<break time="700ms"/>`
)

var paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n`)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Page is one paragraph of a story with its 1-based position.
type Page struct {
	Index int
	Text  string // paragraph text, whitespace-normalized, unescaped
	Image string // storage key of the illustration attached after this page, if any
}

// Document is a paginated story ready to be rendered as speech markup.
type Document struct {
	Pages []Page
}

// Paginate splits prose on blank lines. Paragraph-internal whitespace (including single
// newlines) collapses to one space. Input without any text yields one empty page.
func Paginate(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages []Page
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		pages = append(pages, Page{Index: len(pages) + 1, Text: para})
	}
	if len(pages) == 0 {
		pages = []Page{{Index: 1}}
	}
	return Document{Pages: pages}
}

// Markup renders the page without the document wrapper:
//
//	<p>text<break/></p>[<mark name="image_N:key"/>]<mark name="page_N"/>
func (p Page) Markup() string {
	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(withPauses(xmlEscaper.Replace(p.Text)))
	b.WriteString("</p>")
	if p.Image != "" {
		b.WriteString(`<mark name="image_`)
		b.WriteString(strconv.Itoa(p.Index))
		b.WriteString(":")
		b.WriteString(xmlEscaper.Replace(p.Image))
		b.WriteString(`"/>`)
	}
	b.WriteString(`<mark name="page_`)
	b.WriteString(strconv.Itoa(p.Index))
	b.WriteString(`"/>`)
	return b.String()
}

// Size is the byte length of the page markup.
func (p Page) Size() int {
	return len(p.Markup())
}

// Render wraps all pages in a single speak element.
func (d Document) Render() string {
	return wrap(d.Pages)
}

// Texts returns the page texts in order.
func (d Document) Texts() []string {
	out := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		out[i] = p.Text
	}
	return out
}

func wrap(pages []Page) string {
	var b strings.Builder
	b.WriteString(speakOpen)
	for _, p := range pages {
		b.WriteString(p.Markup())
	}
	b.WriteString(speakClose)
	return b.String()
}

// closers may follow a sentence-ending period before the pause, in escaped form.
var closers = []string{"&quot;", "&apos;", ")", "”", "’"}

// withPauses inserts SentencePause after every period that ends a sentence,
// i.e. is followed by whitespace or closes the paragraph, possibly through a run of
// closing quotes or parentheses. The pause goes after that run. Decimal points and
// the inner dots of an ellipsis are left alone.
func withPauses(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 32)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] != '.' {
			continue
		}
		j := skipClosers(s, i+1)
		if j == len(s) || s[j] == ' ' {
			b.WriteString(s[i+1 : j])
			b.WriteString(SentencePause)
			i = j - 1
		}
	}
	return b.String()
}

func skipClosers(s string, j int) int {
	for j < len(s) {
		n := 0
		for _, c := range closers {
			if strings.HasPrefix(s[j:], c) {
				n = len(c)
				break
			}
		}
		if n == 0 {
			break
		}
		j += n
	}
	return j
}

package markup

import "iter"

// Envelope is a run of consecutive pages sent to the speech backend in one call.
type Envelope struct {
	Pages []Page
}

// Markup renders the envelope as a standalone speak document.
func (e Envelope) Markup() string {
	return wrap(e.Pages)
}

// Size is the byte length of Markup.
func (e Envelope) Size() int {
	size := WrapperOverhead
	for _, p := range e.Pages {
		size += p.Size()
	}
	return size
}

// Pack groups pages into envelopes of at most maxBytes, wrapper included.
// Pages are never split: a page that does not fit in an empty envelope is
// emitted alone. The sequence can be ranged over any number of times.
func Pack(doc Document, maxBytes int) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		var current []Page
		size := WrapperOverhead
		for _, page := range doc.Pages {
			pageSize := page.Size()
			if len(current) > 0 && size+pageSize > maxBytes {
				if !yield(Envelope{Pages: current}) {
					return
				}
				current = nil
				size = WrapperOverhead
			}
			current = append(current, page)
			size += pageSize
		}
		if len(current) > 0 {
			yield(Envelope{Pages: current})
		}
	}
}

// Weave attaches image keys to pages positionally: keys[i] goes to page i+1.
// Keys beyond the last page are dropped. The input document is not modified.
func Weave(doc Document, keys []string) Document {
	pages := make([]Page, len(doc.Pages))
	copy(pages, doc.Pages)
	for i, key := range keys {
		if i >= len(pages) {
			break
		}
		pages[i].Image = key
	}
	return Document{Pages: pages}
}

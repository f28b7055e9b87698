package markup

import (
	"encoding/xml"
	"errors"
	"io"
	"math/rand/v2"
	"reflect"
	"slices"
	"strings"
	"testing"
)

func TestPaginate_SingleParagraph(t *testing.T) {
	doc := Paginate("Para one. Sentence two.")
	if len(doc.Pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(doc.Pages))
	}
	want := `<p>Para one.<break time="700ms"/> Sentence two.<break time="700ms"/></p><mark name="page_1"/>`
	if got := doc.Pages[0].Markup(); got != want {
		t.Errorf("Markup() =\n%s\nwant\n%s", got, want)
	}
	if got := doc.Render(); got != "<speak>"+want+"</speak>" {
		t.Errorf("Render() = %s", got)
	}
}

func TestPaginate_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n\n", " \n \n\t"} {
		doc := Paginate(in)
		if len(doc.Pages) != 1 {
			t.Errorf("Paginate(%q) gave %d pages, want 1", in, len(doc.Pages))
			continue
		}
		if doc.Pages[0].Index != 1 || doc.Pages[0].Text != "" {
			t.Errorf("Paginate(%q) page = %+v, want empty page 1", in, doc.Pages[0])
		}
	}
}

func TestPaginate_ContiguousNumbering(t *testing.T) {
	text := "First.\n\nSecond line\ncontinues.\n\n\n\nThird.\r\n\r\nFourth.\n  \nFifth."
	doc := Paginate(text)
	want := []string{"First.", "Second line continues.", "Third.", "Fourth.", "Fifth."}
	if got := doc.Texts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Texts() = %q, want %q", got, want)
	}
	for i, p := range doc.Pages {
		if p.Index != i+1 {
			t.Errorf("page %d has index %d", i, p.Index)
		}
	}
}

func TestPage_PausesOnlyAfterSentenceEnds(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		pauses  int
		want    []string
		notWant []string
	}{
		{
			name:    "decimals and ellipsis",
			text:    "Pi is 3.14 today... Really.",
			pauses:  2,
			notWant: []string{"3." + SentencePause},
		},
		{
			name:   "closing quote",
			text:   `"Follow me." She nodded.`,
			pauses: 2,
			want:   []string{"me.&quot;" + SentencePause},
		},
		{
			name:   "closing parenthesis",
			text:   "They walked on (slowly.) Done.",
			pauses: 2,
			want:   []string{"(slowly.)" + SentencePause},
		},
		{
			name:   "closing run at paragraph end",
			text:   "He said 'stop.')",
			pauses: 1,
			want:   []string{"stop.&apos;)" + SentencePause},
		},
		{
			name:   "typographic quote",
			text:   "“Come.” Then silence.",
			pauses: 2,
			want:   []string{"Come.”" + SentencePause},
		},
		{
			name:   "quote not followed by space",
			text:   `Say "a.b" now.`,
			pauses: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Page{Index: 1, Text: tt.text}.Markup()
			if n := strings.Count(got, SentencePause); n != tt.pauses {
				t.Errorf("got %d pauses in %s, want %d", n, got, tt.pauses)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("%s missing %q", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("%s contains %q", got, w)
				}
			}
		})
	}
}

func TestDocument_DialoguePausesStayWellFormed(t *testing.T) {
	rendered := Paginate("The wizard smiled. \"Follow me.\" They walked on (slowly.) Done.").Render()
	if n := strings.Count(rendered, SentencePause); n != 4 {
		t.Errorf("got %d pauses, want 4: %s", n, rendered)
	}
	dec := xml.NewDecoder(strings.NewReader(rendered))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("rendered markup is not well-formed: %v\n%s", err, rendered)
		}
	}
}

func TestDocument_RenderIsWellFormed(t *testing.T) {
	doc := Weave(Paginate("Tom & Jerry <3 \"quotes\".\n\nIt's over. The end."), []string{`stories/x/"1".png`})
	rendered := doc.Render()
	if !strings.Contains(rendered, "Tom &amp; Jerry &lt;3 &quot;quotes&quot;.") {
		t.Errorf("text not escaped: %s", rendered)
	}
	dec := xml.NewDecoder(strings.NewReader(rendered))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("rendered markup is not well-formed: %v\n%s", err, rendered)
		}
	}
}

func TestPack_SingleOversizedPage(t *testing.T) {
	doc := Paginate("Para one. Sentence two.")
	envs := slices.Collect(Pack(doc, 50))
	if len(envs) != 1 {
		t.Fatalf("got %d envelopes, want 1", len(envs))
	}
	if len(envs[0].Pages) != 1 {
		t.Errorf("envelope holds %d pages, want 1", len(envs[0].Pages))
	}
	if envs[0].Size() <= 50 {
		t.Errorf("expected oversized envelope, size %d", envs[0].Size())
	}
}

func TestPack_TwoLargeParagraphs(t *testing.T) {
	para := strings.Repeat("a", 3000)
	doc := Paginate(para + "\n\n" + para)
	envs := slices.Collect(Pack(doc, 5000))
	if len(envs) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(envs))
	}
	for i, e := range envs {
		if len(e.Pages) != 1 || e.Pages[0].Index != i+1 {
			t.Errorf("envelope %d = %+v", i, e.Pages)
		}
		if e.Size() > 5000 {
			t.Errorf("envelope %d size %d exceeds max", i, e.Size())
		}
	}
}

func TestPack_EnvelopeSizeMatchesMarkup(t *testing.T) {
	doc := Paginate("One. Two.\n\nThree & four.\n\nFive.")
	for e := range Pack(doc, 80) {
		if e.Size() != len(e.Markup()) {
			t.Errorf("Size() = %d, len(Markup()) = %d", e.Size(), len(e.Markup()))
		}
	}
}

func TestPack_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	words := []string{"the", "knight", "rode", "north.", "stars", "burned", "cold.", "a", "ship", "&", "<ok>"}

	for round := 0; round < 200; round++ {
		var paras []string
		for p := rng.IntN(12); p >= 0; p-- {
			var sb strings.Builder
			for w := rng.IntN(80) + 1; w > 0; w-- {
				sb.WriteString(words[rng.IntN(len(words))])
				sb.WriteByte(' ')
			}
			paras = append(paras, sb.String())
		}
		doc := Paginate(strings.Join(paras, "\n\n"))
		maxBytes := WrapperOverhead + rng.IntN(1500)

		var flat []Page
		for e := range Pack(doc, maxBytes) {
			if len(e.Pages) == 0 {
				t.Fatalf("round %d: empty envelope", round)
			}
			if e.Size() > maxBytes && len(e.Pages) != 1 {
				t.Fatalf("round %d: envelope of %d pages has size %d > %d", round, len(e.Pages), e.Size(), maxBytes)
			}
			flat = append(flat, e.Pages...)
		}
		if !reflect.DeepEqual(flat, doc.Pages) {
			t.Fatalf("round %d: flattened envelopes differ from pages", round)
		}

		again := slices.Collect(Pack(doc, maxBytes))
		first := slices.Collect(Pack(doc, maxBytes))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("round %d: Pack is not restartable", round)
		}
	}
}

func TestPack_StopsEarly(t *testing.T) {
	doc := Paginate("a.\n\nb.\n\nc.")
	count := 0
	for range Pack(doc, WrapperOverhead) {
		count++
		break
	}
	if count != 1 {
		t.Errorf("iterated %d times, want 1", count)
	}
}

func TestWeave(t *testing.T) {
	doc := Paginate("One.\n\nTwo.")
	woven := Weave(doc, []string{"img1", "img2", "img3"})

	if woven.Pages[0].Image != "img1" || woven.Pages[1].Image != "img2" {
		t.Errorf("images attached to wrong pages: %+v", woven.Pages)
	}
	if doc.Pages[0].Image != "" {
		t.Error("Weave modified its input")
	}
	rendered := woven.Render()
	if strings.Contains(rendered, "img3") {
		t.Errorf("excess image kept: %s", rendered)
	}
	if !strings.Contains(rendered, `</p><mark name="image_1:img1"/><mark name="page_1"/>`) {
		t.Errorf("image anchor not right after page 1: %s", rendered)
	}

	fewer := Weave(Paginate("A.\n\nB.\n\nC."), []string{"only"})
	if fewer.Pages[1].Image != "" || fewer.Pages[2].Image != "" {
		t.Errorf("later pages should have no image: %+v", fewer.Pages)
	}
}

func TestStripMarkdown(t *testing.T) {
	in := "# The Tale\n\nSir **Alaric** rode to *the* [castle](http://x).\n\nUse `magic`."
	want := "The Tale\n\nSir Alaric rode to the castle.\n\nUse magic."
	if got := StripMarkdown(in); got != want {
		t.Errorf("StripMarkdown() = %q, want %q", got, want)
	}
}

func TestToHTML(t *testing.T) {
	got := ToHTML([]string{"Hello **brave** <one>.", "Second."}, []string{"https://cdn/x.png?a=1&b=2"})

	if !strings.Contains(got, `<div class="page" data-page="1"><p class="page-text">Hello <strong>brave</strong> &lt;one&gt;.</p><img class="page-image" src="https://cdn/x.png?a=1&amp;b=2" alt=""></div>`) {
		t.Errorf("unexpected first page: %s", got)
	}
	if strings.Count(got, "<img") != 1 {
		t.Errorf("want exactly one image: %s", got)
	}
}

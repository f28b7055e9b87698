package handlers

import (
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/markup"
	"github.com/snappy-loop/storyteller/internal/models"
)

type viewVoice struct {
	Label string
	URL   string
}

type viewData struct {
	Story  *models.StoryRecord
	Lang   string
	Pages  template.HTML
	Voices []viewVoice
}

// ViewStory handles GET /view/{genre}/{id}?lang=en
func (h *Handler) ViewStory(w http.ResponseWriter, r *http.Request) {
	record, err := h.storyFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lang := strings.ToLower(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = "en"
	}
	content, ok := record.Content[lang]
	if !ok {
		writeJSONError(w, http.StatusNotFound, "story has no "+lang+" text")
		return
	}

	imageURLs := make([]string, len(record.Images))
	for i, img := range record.Images {
		imageURLs[i] = img.URL
	}

	var voices []viewVoice
	for key, ref := range record.Audio {
		if strings.HasSuffix(key, "_"+lang) {
			label := strings.ReplaceAll(strings.TrimSuffix(key, "_"+lang), "_", " ")
			voices = append(voices, viewVoice{Label: label, URL: ref.URL})
		}
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Label < voices[j].Label })

	data := viewData{
		Story:  record,
		Lang:   lang,
		Pages:  template.HTML(markup.ToHTML(content.Pages, imageURLs)),
		Voices: voices,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := executeTemplate(w, "view", data); err != nil {
		log.Error().Err(err).Str("story_id", record.StoryID).Msg("Failed to render story")
		writeJSONError(w, http.StatusInternalServerError, "failed to render story")
	}
}

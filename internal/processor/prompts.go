package processor

import (
	"fmt"

	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/voice"
)

const (
	storytellerSystem = "You are a storyteller."
	translatorSystem  = "You are a translator."
	editorSystem      = "You are an editor who writes short, plain summaries."
)

func storyPrompt(prompt, title string, cast illustration.Cast) string {
	return fmt.Sprintf(`%s This is a story about %s, set in %s.

Title: %s
Write the story as plain prose in a few short paragraphs separated by blank lines. Do not use headings, lists or markdown.`,
		prompt, cast.Protagonist, cast.Location, title)
}

func translationPrompt(story, lang string) string {
	name := voice.LanguageName(lang)
	example := ""
	if lang == "tr" {
		example = " For example, 'Sir Alaric' should become 'Sör Alarik'."
	}
	return fmt.Sprintf(`Translate the following story to %s. When you encounter names, translate them phonetically so they are pronounceable in %s.%s Keep the paragraph breaks exactly as they are and return only the translation:

%s`, name, name, example, story)
}

func summaryPrompt(story string, sentences int) string {
	return fmt.Sprintf(`Summarize the following story in %d to %d short sentences, in story order. Each sentence must describe one visual moment. Return plain sentences only, no lists or headings:

%s`, sentences, sentences*2, story)
}

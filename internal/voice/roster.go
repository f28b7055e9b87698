package voice

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Variant is one narration configuration: a speaker of a language with an age label.
type Variant struct {
	LanguageCode string `toml:"language_code" json:"language_code"` // e.g. en-US
	SpeakerID    string `toml:"speaker_id" json:"speaker_id"`       // backend voice name
	Gender       string `toml:"gender" json:"gender"`               // MALE, FEMALE
	AgeLabel     string `toml:"age_label" json:"age_label"`         // young_man, old_woman, ...
}

// Language is the primary language subtag, e.g. "en" for en-US.
func (v Variant) Language() string {
	lang, _, _ := strings.Cut(v.LanguageCode, "-")
	return strings.ToLower(lang)
}

// Key identifies the variant inside a story record, e.g. young_man_en.
func (v Variant) Key() string {
	return v.AgeLabel + "_" + v.Language()
}

// Roster is the ordered list of variants every story is narrated with.
type Roster []Variant

// DefaultRoster is two languages crossed with young/old and male/female.
func DefaultRoster() Roster {
	return Roster{
		{LanguageCode: "en-US", SpeakerID: "en-US-Wavenet-D", Gender: "MALE", AgeLabel: "young_man"},
		{LanguageCode: "en-GB", SpeakerID: "en-GB-Neural2-A", Gender: "FEMALE", AgeLabel: "young_woman"},
		{LanguageCode: "en-GB", SpeakerID: "en-GB-Wavenet-D", Gender: "MALE", AgeLabel: "old_man"},
		{LanguageCode: "en-US", SpeakerID: "en-US-Wavenet-C", Gender: "FEMALE", AgeLabel: "old_woman"},
		{LanguageCode: "tr-TR", SpeakerID: "tr-TR-Wavenet-B", Gender: "MALE", AgeLabel: "young_man"},
		{LanguageCode: "tr-TR", SpeakerID: "tr-TR-Wavenet-C", Gender: "FEMALE", AgeLabel: "young_woman"},
		{LanguageCode: "tr-TR", SpeakerID: "tr-TR-Wavenet-E", Gender: "MALE", AgeLabel: "old_man"},
		{LanguageCode: "tr-TR", SpeakerID: "tr-TR-Wavenet-D", Gender: "FEMALE", AgeLabel: "old_woman"},
	}
}

// Languages returns the distinct languages of the roster in first-seen order.
func (r Roster) Languages() []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range r {
		if lang := v.Language(); !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	return out
}

// Validate rejects incomplete variants and duplicate keys.
func (r Roster) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("roster is empty")
	}
	keys := make(map[string]bool, len(r))
	for i, v := range r {
		if v.LanguageCode == "" || v.SpeakerID == "" || v.AgeLabel == "" {
			return fmt.Errorf("variant %d: language_code, speaker_id and age_label are required", i)
		}
		if keys[v.Key()] {
			return fmt.Errorf("variant %d: duplicate key %s", i, v.Key())
		}
		keys[v.Key()] = true
	}
	return nil
}

type rosterFile struct {
	Voices []Variant `toml:"voices"`
}

// ParseRoster reads a roster from TOML:
//
//	[[voices]]
//	language_code = "en-US"
//	speaker_id = "en-US-Wavenet-D"
//	gender = "MALE"
//	age_label = "young_man"
func ParseRoster(data []byte) (Roster, error) {
	var f rosterFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	roster := Roster(f.Voices)
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return roster, nil
}

// LoadRoster returns the roster from path, or DefaultRoster when path is empty.
func LoadRoster(path string) (Roster, error) {
	if path == "" {
		return DefaultRoster(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

var languageNames = map[string]string{
	"en": "English",
	"tr": "Turkish",
	"de": "German",
	"es": "Spanish",
	"fr": "French",
	"it": "Italian",
}

// LanguageName returns the English name of a language subtag, or the subtag itself.
func LanguageName(lang string) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return lang
}

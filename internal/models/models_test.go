package models

import (
	"errors"
	"testing"
)

func TestParseGenre(t *testing.T) {
	tests := []struct {
		in      string
		want    Genre
		wantErr bool
	}{
		{"fantasy", GenreFantasy, false},
		{" Sci-Fi ", GenreSciFi, false},
		{"horror", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGenre(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGenre(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrValidation) {
			t.Errorf("ParseGenre(%q) err = %v, want ErrValidation", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseGenre(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     StoryRequest
		wantErr bool
	}{
		{"ok", StoryRequest{Prompt: "p", Title: "t", Genre: "fantasy"}, false},
		{"missing prompt", StoryRequest{Title: "t", Genre: "fantasy"}, true},
		{"missing title", StoryRequest{Prompt: "p", Genre: "fantasy"}, true},
		{"missing genre", StoryRequest{Prompt: "p", Title: "t"}, true},
		{"bad genre", StoryRequest{Prompt: "p", Title: "t", Genre: "western"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && req.Tags == nil {
				t.Error("Validate() should default tags to an empty slice")
			}
		})
	}
}

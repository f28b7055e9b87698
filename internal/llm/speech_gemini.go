package llm

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	unifiedgenai "google.golang.org/genai"
)

// geminiPCMFormat is what Gemini TTS streams: 16-bit mono PCM at 24kHz.
const geminiPCMFormat = "audio/L16;rate=24000"

var (
	ssmlBreakRe = regexp.MustCompile(`<break[^>]*/>`)
	ssmlTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// GeminiSpeech synthesizes speech with Gemini TTS. Chunks are raw PCM; Wrap adds the WAV
// header once the chunks of a variant have been concatenated.
type GeminiSpeech struct {
	client *unifiedgenai.Client
	model  string
}

// GeminiSpeech returns the Gemini speech backend, or an error when no Gemini key was configured.
func (c *Client) GeminiSpeech() (*GeminiSpeech, error) {
	if c.unifiedClient == nil {
		return nil, fmt.Errorf("gemini speech not configured")
	}
	return &GeminiSpeech{client: c.unifiedClient, model: c.ttsModel}, nil
}

// SynthesizeSpeech speaks the text content of the SSML envelope with the requested prebuilt voice.
func (g *GeminiSpeech) SynthesizeSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	text := ssmlToText(req.Markup)
	if text == "" {
		return nil, fmt.Errorf("gemini speech: envelope has no text")
	}
	if hint := paceHint(req.SpeakingRate); hint != "" {
		text = "[pace: " + hint + "] " + text
	}

	contents := []*unifiedgenai.Content{
		{
			Role:  "user",
			Parts: []*unifiedgenai.Part{unifiedgenai.NewPartFromText(text)},
		},
	}
	config := &unifiedgenai.GenerateContentConfig{
		ResponseModalities: []string{"audio"},
		SpeechConfig: &unifiedgenai.SpeechConfig{
			LanguageCode: req.LanguageCode,
			VoiceConfig: &unifiedgenai.VoiceConfig{
				PrebuiltVoiceConfig: &unifiedgenai.PrebuiltVoiceConfig{
					VoiceName: req.SpeakerID,
				},
			},
		},
	}

	var audioBuffer bytes.Buffer
	var lastMimeType string
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
		if err != nil {
			return nil, fmt.Errorf("gemini speech stream: %w", err)
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		cand := resp.Candidates[0]
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				audioBuffer.Write(part.InlineData.Data)
				if part.InlineData.MIMEType != "" {
					lastMimeType = part.InlineData.MIMEType
				}
			}
		}
	}
	if audioBuffer.Len() == 0 {
		return nil, fmt.Errorf("gemini speech: %w", ErrEmptyResponse)
	}
	if lastMimeType != "" && !strings.HasPrefix(lastMimeType, "audio/L") {
		log.Warn().Str("mime_type", lastMimeType).Msg("Gemini speech returned non-PCM audio")
	}

	log.Debug().
		Str("voice", req.SpeakerID).
		Int("audio_size_bytes", audioBuffer.Len()).
		Str("mime_type", lastMimeType).
		Msg("Speech chunk synthesized")
	return audioBuffer.Bytes(), nil
}

// ContentType of the wrapped audio.
func (g *GeminiSpeech) ContentType() string { return "audio/wav" }

// Extension of the wrapped audio.
func (g *GeminiSpeech) Extension() string { return "wav" }

// Wrap adds a WAV header to concatenated PCM chunks.
func (g *GeminiSpeech) Wrap(pcm []byte) []byte {
	return convertToWAV(pcm, geminiPCMFormat)
}

// ssmlToText drops markup and turns pauses into spaces.
func ssmlToText(ssml string) string {
	s := ssmlBreakRe.ReplaceAllString(ssml, " ")
	s = strings.ReplaceAll(s, "</p>", "\n")
	s = ssmlTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func paceHint(rate float64) string {
	switch {
	case rate == 0 || rate == 1:
		return ""
	case rate < 1:
		return "slightly slow, calm storytelling"
	default:
		return "slightly fast"
	}
}

// convertToWAV converts raw PCM audio data to WAV format.
func convertToWAV(audioData []byte, mimeType string) []byte {
	params := parseAudioMimeType(mimeType)
	bitsPerSample := params.bitsPerSample
	sampleRate := params.rate
	numChannels := 1
	dataSize := len(audioData)
	bytesPerSample := bitsPerSample / 8
	blockAlign := numChannels * bytesPerSample
	byteRate := sampleRate * blockAlign
	chunkSize := 36 + dataSize

	header := new(bytes.Buffer)
	binary.Write(header, binary.LittleEndian, []byte("RIFF"))
	binary.Write(header, binary.LittleEndian, uint32(chunkSize))
	binary.Write(header, binary.LittleEndian, []byte("WAVE"))
	binary.Write(header, binary.LittleEndian, []byte("fmt "))
	binary.Write(header, binary.LittleEndian, uint32(16))
	binary.Write(header, binary.LittleEndian, uint16(1))
	binary.Write(header, binary.LittleEndian, uint16(numChannels))
	binary.Write(header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(header, binary.LittleEndian, uint32(byteRate))
	binary.Write(header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(header, binary.LittleEndian, uint16(bitsPerSample))
	binary.Write(header, binary.LittleEndian, []byte("data"))
	binary.Write(header, binary.LittleEndian, uint32(dataSize))

	return append(header.Bytes(), audioData...)
}

type audioParams struct {
	bitsPerSample int
	rate          int
}

var pcmBitsRe = regexp.MustCompile(`audio/L(\d+)`)

// parseAudioMimeType parses bits per sample and rate from an audio MIME type.
func parseAudioMimeType(mimeType string) audioParams {
	params := audioParams{bitsPerSample: 16, rate: 24000}

	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "rate=") {
			if rate, err := strconv.Atoi(strings.SplitN(part, "=", 2)[1]); err == nil {
				params.rate = rate
			}
		} else if matches := pcmBitsRe.FindStringSubmatch(part); len(matches) > 1 {
			if bits, err := strconv.Atoi(matches[1]); err == nil {
				params.bitsPerSample = bits
			}
		}
	}
	return params
}

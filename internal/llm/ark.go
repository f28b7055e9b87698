package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const arkImagesPath = "/api/v3/images/generations"

// ArkImageClient generates images with the Volcengine Ark images API.
// Ark answers with a URL or base64 payload; URLs are downloaded so callers always get bytes.
type ArkImageClient struct {
	http  *resty.Client
	fetch *resty.Client // no credentials; image URLs point at third-party storage
	model string
	size  string
}

type arkImageResponse struct {
	Data []struct {
		URL    string `json:"url"`
		B64    string `json:"b64_json"`
		Format string `json:"format"`
	} `json:"data"`
}

type arkErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewArkImageClient creates an Ark client. model and size fall back to the Ark defaults.
func NewArkImageClient(baseURL, apiKey, model, size string, timeout time.Duration) *ArkImageClient {
	if model == "" {
		model = "doubao-seedream-4.0"
	}
	if size == "" {
		size = "1024x1024"
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json").
		SetTimeout(timeout).
		SetLogger(quietLogger{})
	fetch := resty.New().SetTimeout(timeout).SetLogger(quietLogger{})
	return &ArkImageClient{http: client, fetch: fetch, model: model, size: size}
}

// GenerateImage requests one image for the prompt.
func (c *ArkImageClient) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	var out arkImageResponse
	var apiErr arkErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":  c.model,
			"prompt": prompt,
			"size":   c.size,
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post(arkImagesPath)
	if err != nil {
		return nil, fmt.Errorf("ark images: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return nil, fmt.Errorf("ark images: http %d: %s: %s", resp.StatusCode(), apiErr.Error.Code, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("ark images: http %d", resp.StatusCode())
	}

	for _, d := range out.Data {
		if d.B64 != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64)
			if err != nil {
				return nil, fmt.Errorf("ark images: decode b64_json: %w", err)
			}
			format := d.Format
			if format == "" {
				format = "png"
			}
			return &Image{Data: data, MimeType: "image/" + format, Model: c.model}, nil
		}
		if d.URL != "" {
			img, err := c.FetchImage(ctx, d.URL)
			if err != nil {
				return nil, err
			}
			img.Model = c.model
			return img, nil
		}
	}
	return nil, fmt.Errorf("ark images: no images returned: %w", ErrEmptyResponse)
}

// FetchImage downloads an image from an http(s) or data: URL.
func (c *ArkImageClient) FetchImage(ctx context.Context, rawURL string) (*Image, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}

	resp, err := c.fetch.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch image: http %d", resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("fetch image: %w", ErrEmptyResponse)
	}
	mimeType := resp.Header().Get("Content-Type")
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(body)
	}
	log.Debug().Int("image_size_bytes", len(body)).Str("mime_type", mimeType).Msg("Image downloaded")
	return &Image{Data: body, MimeType: mimeType}, nil
}

// decodeDataURL handles data:image/png;base64,... payloads.
func decodeDataURL(raw string) (*Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	mimeType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return nil, fmt.Errorf("unsupported data URL encoding %q", encoding)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}

type quietLogger struct{}

func (quietLogger) Errorf(string, ...interface{}) {}
func (quietLogger) Warnf(string, ...interface{})  {}
func (quietLogger) Debugf(string, ...interface{}) {}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/snappy-loop/storyteller/internal/kafka"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/processor"
	"github.com/snappy-loop/storyteller/internal/storage"
)

const storyID = "4f1c2d3e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"

// fakeStories is a minimal storyGenerator for tests.
type fakeStories struct {
	generate func(context.Context, models.StoryRequest, processor.RunOptions) (*models.StoryRecord, error)
}

func (f *fakeStories) Generate(ctx context.Context, req models.StoryRequest, run processor.RunOptions) (*models.StoryRecord, error) {
	if f.generate != nil {
		return f.generate(ctx, req, run)
	}
	genre, err := req.Validate()
	if err != nil {
		return nil, err
	}
	return &models.StoryRecord{StoryID: storyID, Title: req.Title, Genre: genre}, nil
}

type fakeBatch struct{}

func (fakeBatch) Process(_ context.Context, items []json.RawMessage) []models.BatchItemResult {
	out := make([]models.BatchItemResult, len(items))
	for i := range items {
		out[i] = models.BatchItemResult{Status: models.BatchStatusSuccess}
	}
	return out
}

type fakeCatalog struct {
	stories []*models.StoryRecord
}

func (f *fakeCatalog) ListStories(_ context.Context, genre models.Genre) ([]*models.StoryRecord, error) {
	var out []*models.StoryRecord
	for _, s := range f.stories {
		if genre == "" || s.Genre == genre {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RandomStory(ctx context.Context, genre models.Genre) (*models.StoryRecord, error) {
	stories, _ := f.ListStories(ctx, genre)
	if len(stories) == 0 {
		return nil, fmt.Errorf("%w: no stories", models.ErrNotFound)
	}
	return stories[0], nil
}

func (f *fakeCatalog) GetStory(_ context.Context, genre models.Genre, id string) (*models.StoryRecord, error) {
	for _, s := range f.stories {
		if s.Genre == genre && s.StoryID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: story %s", models.ErrNotFound, id)
}

type fakePublisher struct {
	msgs []*kafka.StoryRequestMessage
}

func (f *fakePublisher) PublishStoryRequest(_ context.Context, msg *kafka.StoryRequestMessage) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func sampleStory() *models.StoryRecord {
	return &models.StoryRecord{
		StoryID:     storyID,
		Title:       "The <Brave> Knight",
		Genre:       models.GenreFantasy,
		Protagonist: "a brave knight",
		Content: map[string]models.LanguageContent{
			"en": {Pages: []string{"He rode out.", "He came home."}},
		},
		Audio: map[string]models.AssetRef{
			"young_man_en": {Key: "k", URL: "https://cdn.test/young_man.mp3"},
		},
		Images: []models.AssetRef{{Key: "i", URL: "https://cdn.test/image_1.png"}},
	}
}

func newTestRouter(stories storyGenerator, catalog catalogService, assets assetReader, pub RequestPublisher) *mux.Router {
	h := NewHandler(stories, fakeBatch{}, catalog, assets, pub)
	r := mux.NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	rec := do(t, newTestRouter(&fakeStories{}, &fakeCatalog{}, nil, nil), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "Welcome to the Storyteller Backend" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGenerateStory(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		gen    func(context.Context, models.StoryRequest, processor.RunOptions) (*models.StoryRecord, error)
		status int
	}{
		{name: "created", body: `{"prompt":"p","title":"t","genre":"fantasy"}`, status: http.StatusCreated},
		{name: "invalid JSON", body: `{invalid json`, status: http.StatusBadRequest},
		{name: "missing genre", body: `{"prompt":"p","title":"t"}`, status: http.StatusBadRequest},
		{name: "unknown genre", body: `{"prompt":"p","title":"t","genre":"horror"}`, status: http.StatusBadRequest},
		{
			name: "upstream failure",
			body: `{"prompt":"p","title":"t","genre":"fantasy"}`,
			gen: func(context.Context, models.StoryRequest, processor.RunOptions) (*models.StoryRecord, error) {
				return nil, fmt.Errorf("%w: speech: quota", models.ErrUpstream)
			},
			status: http.StatusBadGateway,
		},
		{
			name: "storage failure",
			body: `{"prompt":"p","title":"t","genre":"fantasy"}`,
			gen: func(context.Context, models.StoryRequest, processor.RunOptions) (*models.StoryRecord, error) {
				return nil, fmt.Errorf("%w: bucket gone", models.ErrStorage)
			},
			status: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeStories{generate: tt.gen}, &fakeCatalog{}, nil, nil)
			rec := do(t, router, http.MethodPost, "/generate-story", tt.body)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGenerateStoriesBatch(t *testing.T) {
	router := newTestRouter(&fakeStories{}, &fakeCatalog{}, nil, nil)

	rec := do(t, router, http.MethodPost, "/generate-stories-batch", `{"prompt":"p"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("object body: expected 400, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/generate-stories-batch", `null`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("null body: expected 400, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/generate-stories-batch", `[]`)
	if rec.Code != http.StatusCreated || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty array: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/generate-stories-batch", `[{"prompt":"p"}, 5]`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var results []models.BatchItemResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results", len(results))
	}
}

func TestRandomStory(t *testing.T) {
	catalog := &fakeCatalog{stories: []*models.StoryRecord{sampleStory()}}
	router := newTestRouter(&fakeStories{}, catalog, nil, nil)

	if rec := do(t, router, http.MethodGet, "/random-story?genre=western", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad genre: expected 400, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/random-story?genre=sci-fi", ""); rec.Code != http.StatusNotFound {
		t.Errorf("empty genre: expected 404, got %d", rec.Code)
	}
	rec := do(t, router, http.MethodGet, "/random-story?genre=Fantasy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.StoryRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.StoryID != storyID {
		t.Errorf("story_id = %q", got.StoryID)
	}
}

func TestListAndGetStory(t *testing.T) {
	catalog := &fakeCatalog{stories: []*models.StoryRecord{sampleStory()}}
	router := newTestRouter(&fakeStories{}, catalog, nil, nil)

	rec := do(t, router, http.MethodGet, "/stories", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"stories"`) {
		t.Errorf("list: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, router, http.MethodGet, "/stories/fantasy/not-a-uuid", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: expected 400, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/stories/sci-fi/"+storyID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("wrong genre: expected 404, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/stories/fantasy/"+storyID, ""); rec.Code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", rec.Code)
	}
}

func TestViewStory(t *testing.T) {
	catalog := &fakeCatalog{stories: []*models.StoryRecord{sampleStory()}}
	router := newTestRouter(&fakeStories{}, catalog, nil, nil)

	rec := do(t, router, http.MethodGet, "/view/fantasy/"+storyID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{
		"The &lt;Brave&gt; Knight",
		`src="https://cdn.test/image_1.png"`,
		`data-page="2"`,
		"young man",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	if rec := do(t, router, http.MethodGet, "/view/fantasy/"+storyID+"?lang=tr", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing language: expected 404, got %d", rec.Code)
	}
}

func TestGetAsset(t *testing.T) {
	store := storage.NewMemoryStore("http://localhost:8080/assets")
	store.Put(context.Background(), "stories/fantasy/x/en/young_man.mp3", []byte("ID3"), "audio/mpeg")
	router := newTestRouter(&fakeStories{}, &fakeCatalog{}, store, nil)

	rec := do(t, router, http.MethodGet, "/assets/stories/fantasy/x/en/young_man.mp3", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if rec := do(t, router, http.MethodGet, "/assets/stories/fantasy/x/en/old_man.mp3", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/assets/secrets/key.pem", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("outside stories: expected 400, got %d", rec.Code)
	}
}

func TestEnqueueStories(t *testing.T) {
	router := newTestRouter(&fakeStories{}, &fakeCatalog{}, nil, nil)
	if rec := do(t, router, http.MethodPost, "/enqueue-stories", `[]`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no queue: expected 503, got %d", rec.Code)
	}

	pub := &fakePublisher{}
	router = newTestRouter(&fakeStories{}, &fakeCatalog{}, nil, pub)
	rec := do(t, router, http.MethodPost, "/enqueue-stories",
		`[{"prompt":"p","title":"t","genre":"sci-fi"},{"prompt":"p","title":"t"}]`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Requests []enqueueResult `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Requests) != 2 || resp.Requests[0].Status != "queued" || resp.Requests[1].Status != "error" {
		t.Errorf("results = %+v", resp.Requests)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].RequestID != resp.Requests[0].RequestID {
		t.Errorf("published = %+v", pub.msgs)
	}
}

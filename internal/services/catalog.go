package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/storyteller/internal/models"
	"github.com/snappy-loop/storyteller/internal/storage"
)

const (
	storiesPrefix = "stories/"
	recordName    = "story_data.json"
)

// DefaultSignedURLTTL is the lifetime of signed asset URLs.
const DefaultSignedURLTTL = time.Hour

// CatalogService serves persisted stories. It never writes.
type CatalogService struct {
	store  recordStore
	signer URLSigner
	index  StoryIndexReader
	ttl    time.Duration
	rng    RandomSource
}

// NewCatalogService creates a catalog over store. signer may be nil.
func NewCatalogService(store recordStore, signer URLSigner, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &CatalogService{
		store:  store,
		signer: signer,
		ttl:    ttl,
		rng:    &lockedRand{r: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xca7a))},
	}
}

// WithIndex lists stories from a relational index instead of scanning the bucket.
func (s *CatalogService) WithIndex(index StoryIndexReader) *CatalogService {
	s.index = index
	return s
}

// WithRandom replaces the source RandomStory draws from.
func (s *CatalogService) WithRandom(rng RandomSource) *CatalogService {
	s.rng = rng
	return s
}

// ListStories returns every persisted story, optionally of one genre, with
// resolved asset URLs. An empty genre matches all genres.
func (s *CatalogService) ListStories(ctx context.Context, genre models.Genre) ([]*models.StoryRecord, error) {
	keys, err := s.recordKeys(ctx, genre)
	if err != nil {
		return nil, err
	}

	stories := make([]*models.StoryRecord, 0, len(keys))
	for _, key := range keys {
		record, err := s.load(ctx, key)
		if errors.Is(err, models.ErrNotFound) {
			log.Warn().Str("key", key).Msg("Indexed story record missing from storage")
			continue
		}
		if err != nil {
			return nil, err
		}
		if genre != "" && record.Genre != genre {
			continue
		}
		if err := s.resolve(ctx, record); err != nil {
			return nil, err
		}
		stories = append(stories, record)
	}

	log.Debug().
		Str("genre", string(genre)).
		Int("count", len(stories)).
		Msg("Listed stories")

	return stories, nil
}

// RandomStory draws one story uniformly, optionally of one genre.
// It returns models.ErrNotFound when no story matches.
func (s *CatalogService) RandomStory(ctx context.Context, genre models.Genre) (*models.StoryRecord, error) {
	keys, err := s.recordKeys(ctx, genre)
	if err != nil {
		return nil, err
	}

	for len(keys) > 0 {
		i := s.rng.IntN(len(keys))
		record, err := s.load(ctx, keys[i])
		if errors.Is(err, models.ErrNotFound) {
			log.Warn().Str("key", keys[i]).Msg("Indexed story record missing from storage")
			keys = append(keys[:i], keys[i+1:]...)
			continue
		}
		if err != nil {
			return nil, err
		}
		if genre != "" && record.Genre != genre {
			keys = append(keys[:i], keys[i+1:]...)
			continue
		}
		if err := s.resolve(ctx, record); err != nil {
			return nil, err
		}
		return record, nil
	}

	if genre != "" {
		return nil, fmt.Errorf("%w: no %s stories", models.ErrNotFound, genre)
	}
	return nil, fmt.Errorf("%w: no stories", models.ErrNotFound)
}

// GetStory returns one story by genre and id.
func (s *CatalogService) GetStory(ctx context.Context, genre models.Genre, storyID string) (*models.StoryRecord, error) {
	if storyID == "" || strings.ContainsAny(storyID, "/.") {
		return nil, fmt.Errorf("%w: invalid story id %q", models.ErrValidation, storyID)
	}
	record, err := s.load(ctx, path.Join("stories", string(genre), storyID, recordName))
	if err != nil {
		return nil, err
	}
	if err := s.resolve(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *CatalogService) recordKeys(ctx context.Context, genre models.Genre) ([]string, error) {
	if s.index != nil {
		entries, err := s.index.List(ctx, genre)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to list story index: %w", models.ErrStorage, err)
		}
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.RecordKey
		}
		return keys, nil
	}

	prefix := storiesPrefix
	if genre != "" {
		prefix += string(genre) + "/"
	}
	all, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list stories: %w", models.ErrStorage, err)
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasSuffix(k, "/"+recordName) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *CatalogService) load(ctx context.Context, key string) (*models.StoryRecord, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: story %s", models.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", models.ErrStorage, key, err)
	}
	var record models.StoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: corrupt story record %s: %w", models.ErrStorage, key, err)
	}
	return &record, nil
}

// resolve replaces stored asset URLs with signed URLs when a signer is configured.
func (s *CatalogService) resolve(ctx context.Context, record *models.StoryRecord) error {
	if s.signer == nil {
		return nil
	}
	for i, img := range record.Images {
		url, err := s.signer.SignedURL(ctx, img.Key, s.ttl)
		if err != nil {
			return fmt.Errorf("%w: failed to sign %s: %w", models.ErrStorage, img.Key, err)
		}
		record.Images[i].URL = url
	}
	for variant, ref := range record.Audio {
		url, err := s.signer.SignedURL(ctx, ref.Key, s.ttl)
		if err != nil {
			return fmt.Errorf("%w: failed to sign %s: %w", models.ErrStorage, ref.Key, err)
		}
		ref.URL = url
		record.Audio[variant] = ref
	}
	return nil
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

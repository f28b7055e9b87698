package database

import (
	"context"
	"fmt"

	"github.com/snappy-loop/storyteller/internal/models"
)

// StoryIndexRepository handles story index operations
type StoryIndexRepository struct {
	db *DB
}

// NewStoryIndexRepository creates a new StoryIndexRepository
func NewStoryIndexRepository(db *DB) *StoryIndexRepository {
	return &StoryIndexRepository{db: db}
}

// Insert records a persisted story. Inserting the same story twice is a no-op.
func (r *StoryIndexRepository) Insert(ctx context.Context, entry *models.StoryIndexEntry) error {
	query := `
		INSERT INTO story_index (story_id, genre, title, record_key, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (story_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.StoryID, string(entry.Genre), entry.Title, entry.RecordKey, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert story %s: %w", entry.StoryID, err)
	}
	return nil
}

// List returns indexed stories, newest first. An empty genre lists every genre.
func (r *StoryIndexRepository) List(ctx context.Context, genre models.Genre) ([]*models.StoryIndexEntry, error) {
	query := `
		SELECT story_id, genre, title, record_key, created_at
		FROM story_index
		WHERE ($1 = '' OR genre = $1)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(genre))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.StoryIndexEntry
	for rows.Next() {
		e := &models.StoryIndexEntry{}
		var g string
		if err := rows.Scan(&e.StoryID, &g, &e.Title, &e.RecordKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Genre = models.Genre(g)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

package processor

import (
	"math/rand/v2"
	"sync"

	"github.com/snappy-loop/storyteller/internal/illustration"
	"github.com/snappy-loop/storyteller/internal/models"
)

var protagonists = map[models.Genre][]string{
	models.GenreFantasy: {
		"a brave knight",
		"a curious child",
		"an adventurous explorer",
		"a young apprentice wizard",
	},
	models.GenreSciFi: {
		"a daring starship pilot",
		"a curious android",
		"a young colony engineer",
		"an adventurous space explorer",
	},
}

var locations = map[models.Genre][]string{
	models.GenreFantasy: {
		"the Whispering Woods",
		"the kingdom of Eldoria",
		"the Crystal Caverns",
		"the floating isles of Aeloria",
	},
	models.GenreSciFi: {
		"the orbital city of Nova Prime",
		"the red dunes of Kepler-22b",
		"the derelict starship Meridian",
		"the ice moon Thalassa",
	},
}

// pickCast draws the protagonist and the location once per story.
func pickCast(rng RandomSource, genre models.Genre) illustration.Cast {
	cast := illustration.Cast{Genre: string(genre)}
	if pool := protagonists[genre]; len(pool) > 0 {
		cast.Protagonist = pool[rng.IntN(len(pool))]
	}
	if pool := locations[genre]; len(pool) > 0 {
		cast.Location = pool[rng.IntN(len(pool))]
	}
	return cast
}

// lockedRand makes a *rand.Rand safe for concurrent stories.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

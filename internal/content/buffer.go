package content

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/example/triplehelix/pkg/models"
)

const (
	// PhaseOneCount is how many upcoming stitches per tube the buffer
	// loads eagerly when a session starts.
	PhaseOneCount = 10
	// PhaseTwoCount is the deeper best-effort fill that follows.
	PhaseTwoCount = 50
	// criticalCount is how many of a tube's head stitches get emergency
	// substitutes when phase two cannot fetch them. The rest stay
	// unbuffered until requested.
	criticalCount = 3

	phaseTwoDelay = 30 * time.Second
)

// Fetcher is the remote content API. Satisfied by *Client.
type Fetcher interface {
	FetchStitch(ctx context.Context, id string) (*models.StitchContent, error)
	FetchBatch(ctx context.Context, ids []string) (map[string]models.StitchContent, error)
	FetchManifest(ctx context.Context) (models.Manifest, error)
}

// Buffer resolves stitch ids to full content, cheapest source first:
// in-memory cache, the bundled first-stitch set, the remote API, and
// finally generated emergency content. Resolve never dead-ends.
type Buffer struct {
	mu      sync.RWMutex
	cache   map[string]models.StitchContent
	bundled map[string]models.StitchContent
	fetcher Fetcher

	// phaseTwoAfter is overridable in tests; production keeps the
	// default delay.
	phaseTwoAfter time.Duration
}

// NewBuffer creates a buffer over the given fetcher. A nil fetcher is
// allowed; resolution then stops at the bundled and emergency tiers.
func NewBuffer(fetcher Fetcher) *Buffer {
	return &Buffer{
		cache:         make(map[string]models.StitchContent),
		bundled:       bundledStitches(),
		fetcher:       fetcher,
		phaseTwoAfter: phaseTwoDelay,
	}
}

// Resolve returns content for a stitch id. The second return value
// names the tier that served it ("cache", "bundled", "remote",
// "emergency"), mostly for logging and tests.
func (b *Buffer) Resolve(ctx context.Context, id string) (models.StitchContent, string) {
	b.mu.RLock()
	cached, ok := b.cache[id]
	b.mu.RUnlock()
	if ok {
		return cached, "cache"
	}

	if stitch, ok := b.bundled[id]; ok {
		b.put(stitch)
		return stitch, "bundled"
	}

	if b.fetcher != nil {
		stitch, err := b.fetcher.FetchStitch(ctx, id)
		if err == nil && stitch != nil {
			b.put(*stitch)
			return *stitch, "remote"
		}
		if err != nil {
			log.Printf("Failed to fetch stitch %s: %v", id, err)
		}
	}

	// Last resort so the player never hits a dead end.
	return emergencyStitch(id), "emergency"
}

// Manifest returns the tube manifest, falling back to the bundled one
// when the API is unreachable.
func (b *Buffer) Manifest(ctx context.Context) models.Manifest {
	if b.fetcher != nil {
		manifest, err := b.fetcher.FetchManifest(ctx)
		if err == nil && len(manifest.Tubes) == 3 {
			return manifest
		}
		if err != nil {
			log.Printf("Failed to fetch manifest, using bundled: %v", err)
		}
	}
	return bundledManifest()
}

// Prime warms the buffer for a returning session: phase one fetches the
// next PhaseOneCount stitches per tube synchronously, then phase two
// tops up to PhaseTwoCount per tube in the background after a delay.
// Phase two is best-effort; its failures are logged, the first few
// critical stitches get emergency substitutes, and the rest stay
// unbuffered until asked for.
func (b *Buffer) Prime(ctx context.Context, state models.UserProgressState) {
	b.fill(ctx, state, PhaseOneCount, false)

	time.AfterFunc(b.phaseTwoAfter, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		b.fill(ctx, state, PhaseTwoCount, true)
	})
}

func (b *Buffer) fill(ctx context.Context, state models.UserProgressState, perTube int, substituteCritical bool) {
	if b.fetcher == nil {
		return
	}

	var missing []string
	var critical []string
	for _, tube := range state.Tubes {
		ids := upcoming(tube, perTube)
		for i, id := range ids {
			b.mu.RLock()
			_, cached := b.cache[id]
			b.mu.RUnlock()
			if cached {
				continue
			}
			if _, ok := b.bundled[id]; ok {
				continue
			}
			missing = append(missing, id)
			if i < criticalCount {
				critical = append(critical, id)
			}
		}
	}
	if len(missing) == 0 {
		return
	}

	batch, err := b.fetcher.FetchBatch(ctx, missing)
	if err != nil {
		log.Printf("Buffer fill failed for %d stitches: %v", len(missing), err)
		if substituteCritical {
			for _, id := range critical {
				b.put(emergencyStitch(id))
			}
		}
		return
	}

	for _, stitch := range batch {
		b.put(stitch)
	}
	if substituteCritical {
		for _, id := range critical {
			if _, ok := batch[id]; !ok {
				b.put(emergencyStitch(id))
			}
		}
	}
}

// upcoming lists a tube's next n stitch ids in position order.
func upcoming(tube models.TubeState, n int) []string {
	positions := make([]int, 0, len(tube.Positions))
	for pos := range tube.Positions {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	ids := make([]string, 0, n)
	for _, pos := range positions {
		if len(ids) == n {
			break
		}
		ids = append(ids, tube.Positions[pos].StitchID)
	}
	return ids
}

func (b *Buffer) put(stitch models.StitchContent) {
	b.mu.Lock()
	b.cache[stitch.ID] = stitch
	b.mu.Unlock()
}

// CacheSize reports how many stitches are buffered.
func (b *Buffer) CacheSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cache)
}

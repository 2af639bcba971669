package persistence

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/triplehelix/internal/localstore"
	"github.com/example/triplehelix/pkg/models"
)

// ErrAllWritesFailed is returned when every rung of the strategy ladder
// failed. The update is queued and mirrored by then; callers log it and
// move on, the UI path never blocks on it.
var ErrAllWritesFailed = errors.New("all write strategies failed")

// Mirror is the local durable store the gateway parks pending writes
// and snapshots in. Satisfied by *localstore.Store.
type Mirror interface {
	PutPending(bucket localstore.Bucket, update models.ProgressUpdate) error
	DeletePending(updateKey string) error
	PendingWrites(bucket localstore.Bucket) ([]models.ProgressUpdate, error)
	PutSnapshot(state models.UserProgressState) error
}

// SnapshotWriter persists full progress-state snapshots durably.
// Satisfied by *database.StateSnapshotRepository.
type SnapshotWriter interface {
	Upsert(ctx context.Context, state models.UserProgressState) error
}

// Gateway is the best-effort durable write path for progress updates:
// an ordered strategy ladder, a retry queue and a local mirror. One
// gateway per process; the queue is owned here, not global.
type Gateway struct {
	strategies []WriteStrategy
	queue      *RetryQueue
	mirror     Mirror
	snapshots  SnapshotWriter

	// UrgentDelay is how long a fire-and-forget write waits before the
	// remote attempt is queued. Short; the local mirror write has
	// already happened by then.
	UrgentDelay time.Duration

	mu             sync.Mutex
	latestSnapshot *models.UserProgressState
}

// NewGateway wires a gateway from its collaborators.
func NewGateway(strategies []WriteStrategy, queue *RetryQueue, mirror Mirror, snapshots SnapshotWriter) *Gateway {
	return &Gateway{
		strategies:  strategies,
		queue:       queue,
		mirror:      mirror,
		snapshots:   snapshots,
		UrgentDelay: 500 * time.Millisecond,
	}
}

// Persist attempts the durable write now, walking the strategy ladder
// in order. Individual rung failures are logged and swallowed; only
// exhaustion of the whole ladder is a failure, and even then the
// update is parked in the retry queue and the local mirror rather
// than lost.
func (g *Gateway) Persist(ctx context.Context, update models.ProgressUpdate) error {
	for _, strategy := range g.strategies {
		err := strategy.Attempt(ctx, update)
		if err == nil {
			if derr := g.mirror.DeletePending(update.Key()); derr != nil {
				log.Printf("Failed to clear mirror for %s: %v", update.Key(), derr)
			}
			return nil
		}
		log.Printf("Write strategy %s failed for %s: %v", strategy.Name(), update.Key(), err)
	}

	g.park(update)
	return ErrAllWritesFailed
}

// Schedule queues an asynchronous durable write. The update is mirrored
// to session-scoped local storage synchronously so a crash before the
// drain cannot lose it; the remote write happens on the next drain
// pass. Never blocks on network I/O.
func (g *Gateway) Schedule(update models.ProgressUpdate) {
	if err := g.mirror.PutPending(localstore.BucketSession, update); err != nil {
		log.Printf("Failed to mirror update %s: %v", update.Key(), err)
	}
	g.queue.PushBack(update)
}

// ScheduleUrgent is the fire-and-forget variant for callers that need
// the UI to move on immediately: the mirror write is synchronous, the
// remote write fires on a short timer, and the call returns at once.
func (g *Gateway) ScheduleUrgent(update models.ProgressUpdate) {
	if err := g.mirror.PutPending(localstore.BucketSession, update); err != nil {
		log.Printf("Failed to mirror urgent update %s: %v", update.Key(), err)
	}
	time.AfterFunc(g.UrgentDelay, func() {
		g.queue.PushFront(update)
	})
}

// ScheduleSnapshot records the latest full progress state: mirrored
// locally right away, written durably on the next drain pass. Only the
// newest snapshot is kept; superseded ones are dropped unwritten.
func (g *Gateway) ScheduleSnapshot(state models.UserProgressState) {
	if err := g.mirror.PutSnapshot(state); err != nil {
		log.Printf("Failed to mirror snapshot for %s: %v", state.UserID, err)
	}
	g.mu.Lock()
	g.latestSnapshot = &state
	g.mu.Unlock()
}

// DrainOnce processes the retry queue sequentially: one item, await
// the result, continue. No parallel fan-out, so two retries can never
// race on the same row. Items that still fail are re-queued at the
// back and re-mirrored durably for the next pass.
func (g *Gateway) DrainOnce(ctx context.Context) {
	n := g.queue.Len()
	for i := 0; i < n; i++ {
		update, ok := g.queue.PopFront()
		if !ok {
			break
		}
		if err := g.Persist(ctx, update); err != nil {
			// Persist already parked it; stop the pass, the backend is
			// down and the rest would only fail the same way.
			break
		}
	}

	g.mu.Lock()
	snapshot := g.latestSnapshot
	g.latestSnapshot = nil
	g.mu.Unlock()
	if snapshot != nil {
		if err := g.snapshots.Upsert(ctx, *snapshot); err != nil {
			log.Printf("Failed to persist snapshot for %s: %v", snapshot.UserID, err)
			g.mu.Lock()
			if g.latestSnapshot == nil {
				g.latestSnapshot = snapshot
			}
			g.mu.Unlock()
		}
	}
}

// RecoverMirror re-scans local storage for entries left over from a
// previous run. Current-session entries go to the front of the queue,
// longer-lived leftovers to the back.
func (g *Gateway) RecoverMirror() {
	seen := make(map[string]bool)
	if session, err := g.mirror.PendingWrites(localstore.BucketSession); err != nil {
		log.Printf("Failed to scan session mirror: %v", err)
	} else {
		for i := len(session) - 1; i >= 0; i-- {
			g.queue.PushFront(session[i])
			seen[session[i].Key()] = true
		}
	}

	// The session mirror is always at least as fresh as the durable
	// one, so a durable leftover for a key already queued is skipped.
	if durable, err := g.mirror.PendingWrites(localstore.BucketDurable); err != nil {
		log.Printf("Failed to scan durable mirror: %v", err)
	} else {
		for _, update := range durable {
			if seen[update.Key()] {
				continue
			}
			g.queue.PushBack(update)
		}
	}
}

// park stores a failed update for retry: back of the queue, durable
// mirror bucket so the next process run finds it too.
func (g *Gateway) park(update models.ProgressUpdate) {
	g.queue.PushBack(update)
	if err := g.mirror.PutPending(localstore.BucketDurable, update); err != nil {
		log.Printf("Failed to mirror failed update %s: %v", update.Key(), err)
	}
}

// QueueLen reports the number of updates awaiting retry.
func (g *Gateway) QueueLen() int {
	return g.queue.Len()
}

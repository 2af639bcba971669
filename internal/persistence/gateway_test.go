package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/triplehelix/internal/localstore"
	"github.com/example/triplehelix/pkg/models"
)

type fakeStrategy struct {
	name     string
	err      error
	attempts []models.ProgressUpdate
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Attempt(ctx context.Context, update models.ProgressUpdate) error {
	s.attempts = append(s.attempts, update)
	return s.err
}

type fakeSnapshotWriter struct {
	mu     sync.Mutex
	states []models.UserProgressState
	err    error
}

func (w *fakeSnapshotWriter) Upsert(ctx context.Context, state models.UserProgressState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.states = append(w.states, state)
	return nil
}

func newMirror(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testUpdate(stitchID string, skip int) models.ProgressUpdate {
	return models.ProgressUpdate{
		UserID:          "user-1",
		ThreadID:        "thread-A",
		StitchID:        stitchID,
		SkipNumber:      skip,
		DistractorLevel: models.DistractorL1,
		UpdatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPersistStopsAtFirstSuccess(t *testing.T) {
	first := &fakeStrategy{name: "first"}
	second := &fakeStrategy{name: "second"}
	gateway := NewGateway([]WriteStrategy{first, second}, NewRetryQueue(), newMirror(t), &fakeSnapshotWriter{})

	err := gateway.Persist(context.Background(), testUpdate("s1", 3))
	require.NoError(t, err)
	assert.Len(t, first.attempts, 1)
	assert.Empty(t, second.attempts, "later rungs are not tried after a success")
}

func TestPersistWalksLadderInOrder(t *testing.T) {
	boom := assert.AnError
	first := &fakeStrategy{name: "first", err: boom}
	second := &fakeStrategy{name: "second", err: boom}
	third := &fakeStrategy{name: "third"}
	gateway := NewGateway([]WriteStrategy{first, second, third}, NewRetryQueue(), newMirror(t), &fakeSnapshotWriter{})

	err := gateway.Persist(context.Background(), testUpdate("s1", 3))
	require.NoError(t, err)
	assert.Len(t, first.attempts, 1)
	assert.Len(t, second.attempts, 1)
	assert.Len(t, third.attempts, 1)
}

func TestPersistExhaustionParksUpdate(t *testing.T) {
	// Every attempt fails, so the update lands in the local mirror; a
	// later successful retry removes it.
	failing := &fakeStrategy{name: "only", err: assert.AnError}
	mirror := newMirror(t)
	queue := NewRetryQueue()
	gateway := NewGateway([]WriteStrategy{failing}, queue, mirror, &fakeSnapshotWriter{})

	update := testUpdate("s1", 3)
	err := gateway.Persist(context.Background(), update)
	assert.ErrorIs(t, err, ErrAllWritesFailed)
	assert.Equal(t, 1, queue.Len())

	pending, err := mirror.PendingWrites(localstore.BucketDurable)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, update.Key(), pending[0].Key())

	// Backend comes back; the next drain pass clears the mirror.
	failing.err = nil
	gateway.DrainOnce(context.Background())

	assert.Equal(t, 0, queue.Len())
	pending, err = mirror.PendingWrites(localstore.BucketDurable)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScheduleMirrorsBeforeQueueing(t *testing.T) {
	strategy := &fakeStrategy{name: "ok"}
	mirror := newMirror(t)
	queue := NewRetryQueue()
	gateway := NewGateway([]WriteStrategy{strategy}, queue, mirror, &fakeSnapshotWriter{})

	gateway.Schedule(testUpdate("s1", 3))

	assert.Empty(t, strategy.attempts, "Schedule must not touch the network path")
	assert.Equal(t, 1, queue.Len())
	pending, err := mirror.PendingWrites(localstore.BucketSession)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	gateway.DrainOnce(context.Background())
	assert.Len(t, strategy.attempts, 1)
	assert.Equal(t, 0, queue.Len())
	pending, err = mirror.PendingWrites(localstore.BucketSession)
	require.NoError(t, err)
	assert.Empty(t, pending, "successful write clears the mirror")
}

func TestScheduleUrgentReturnsImmediately(t *testing.T) {
	strategy := &fakeStrategy{name: "ok"}
	mirror := newMirror(t)
	queue := NewRetryQueue()
	gateway := NewGateway([]WriteStrategy{strategy}, queue, mirror, &fakeSnapshotWriter{})
	gateway.UrgentDelay = 10 * time.Millisecond

	gateway.ScheduleUrgent(testUpdate("s1", 3))

	// The mirror write is synchronous, the queue insert is deferred.
	pending, err := mirror.PendingWrites(localstore.BucketSession)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 0, queue.Len())

	assert.Eventually(t, func() bool { return queue.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestDrainOnceIsSequential(t *testing.T) {
	var order []string
	strategy := &fakeStrategy{name: "record"}
	queue := NewRetryQueue()
	gateway := NewGateway([]WriteStrategy{strategy}, queue, newMirror(t), &fakeSnapshotWriter{})

	gateway.Schedule(testUpdate("s1", 3))
	gateway.Schedule(testUpdate("s2", 5))
	gateway.Schedule(testUpdate("s3", 1))
	gateway.DrainOnce(context.Background())

	for _, u := range strategy.attempts {
		order = append(order, u.StitchID)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, order)
}

func TestQueueReplacesSameKey(t *testing.T) {
	queue := NewRetryQueue()
	queue.PushBack(testUpdate("s1", 3))
	queue.PushBack(testUpdate("s2", 1))
	queue.PushBack(testUpdate("s1", 5))

	assert.Equal(t, 2, queue.Len(), "newer update for the same key replaces the queued one")
	head, ok := queue.PopFront()
	require.True(t, ok)
	assert.Equal(t, "s1", head.StitchID)
	assert.Equal(t, 5, head.SkipNumber)
}

func TestRecoverMirrorOrdering(t *testing.T) {
	mirror := newMirror(t)
	require.NoError(t, mirror.PutPending(localstore.BucketDurable, testUpdate("old", 1)))
	require.NoError(t, mirror.PutPending(localstore.BucketSession, testUpdate("fresh", 3)))

	queue := NewRetryQueue()
	gateway := NewGateway(nil, queue, mirror, &fakeSnapshotWriter{})
	gateway.RecoverMirror()

	first, ok := queue.PopFront()
	require.True(t, ok)
	assert.Equal(t, "fresh", first.StitchID, "session leftovers drain before durable ones")
	second, ok := queue.PopFront()
	require.True(t, ok)
	assert.Equal(t, "old", second.StitchID)
}

func TestRecoverMirrorSkipsDuplicateKeys(t *testing.T) {
	mirror := newMirror(t)
	require.NoError(t, mirror.PutPending(localstore.BucketDurable, testUpdate("s1", 1)))
	require.NoError(t, mirror.PutPending(localstore.BucketSession, testUpdate("s1", 5)))

	queue := NewRetryQueue()
	gateway := NewGateway(nil, queue, mirror, &fakeSnapshotWriter{})
	gateway.RecoverMirror()

	require.Equal(t, 1, queue.Len())
	head, _ := queue.PopFront()
	assert.Equal(t, 5, head.SkipNumber, "session copy wins over the durable leftover")
}

func TestDrainOncePersistsLatestSnapshotOnly(t *testing.T) {
	writer := &fakeSnapshotWriter{}
	gateway := NewGateway(nil, NewRetryQueue(), newMirror(t), writer)

	gateway.ScheduleSnapshot(models.UserProgressState{UserID: "user-1", ActiveTubeNumber: 1})
	gateway.ScheduleSnapshot(models.UserProgressState{UserID: "user-1", ActiveTubeNumber: 3})
	gateway.DrainOnce(context.Background())

	require.Len(t, writer.states, 1, "superseded snapshots are dropped unwritten")
	assert.Equal(t, 3, writer.states[0].ActiveTubeNumber)

	gateway.DrainOnce(context.Background())
	assert.Len(t, writer.states, 1, "nothing new to write")
}

func TestLoadStatePrefersLocalMirror(t *testing.T) {
	mirror := newMirror(t)
	local := models.UserProgressState{
		UserID:           "user-1",
		ActiveTubeNumber: 2,
		Tubes:            threeTubes(),
	}
	require.NoError(t, mirror.PutSnapshot(local))

	state, found := LoadState(context.Background(), mirror, nil, "user-1")
	require.True(t, found)
	assert.Equal(t, 2, state.ActiveTubeNumber)
}

func TestLoadStateRejectsCorruptSnapshot(t *testing.T) {
	mirror := newMirror(t)
	corrupt := models.UserProgressState{UserID: "user-1", ActiveTubeNumber: 2}
	require.NoError(t, mirror.PutSnapshot(corrupt))

	_, found := LoadState(context.Background(), mirror, nil, "user-1")
	assert.False(t, found, "a snapshot without tubes is first use, not a crash")
}

func threeTubes() map[int]models.TubeState {
	tubes := make(map[int]models.TubeState, 3)
	for i := 1; i <= 3; i++ {
		tubes[i] = models.TubeState{
			ThreadID:        "thread",
			CurrentStitchID: "s0",
			Positions: map[int]models.PositionEntry{
				0: {StitchID: "s0", SkipNumber: 1, DistractorLevel: models.DistractorL1},
			},
		}
	}
	return tubes
}

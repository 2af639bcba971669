package tubes

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/triplehelix/pkg/models"
)

type recordingPersister struct {
	updates   []models.ProgressUpdate
	urgent    []models.ProgressUpdate
	snapshots []models.UserProgressState
}

func (p *recordingPersister) Schedule(update models.ProgressUpdate) {
	p.updates = append(p.updates, update)
}

func (p *recordingPersister) ScheduleUrgent(update models.ProgressUpdate) {
	p.urgent = append(p.urgent, update)
}

func (p *recordingPersister) ScheduleSnapshot(state models.UserProgressState) {
	p.snapshots = append(p.snapshots, state)
}

func testManifest() models.Manifest {
	manifest := models.Manifest{Tubes: make(map[int]models.ManifestTube)}
	for tube := 1; tube <= 3; tube++ {
		mt := models.ManifestTube{ThreadID: fmt.Sprintf("thread-%d", tube)}
		for i := 0; i < 4; i++ {
			mt.Stitches = append(mt.Stitches, models.StitchRef{
				ID:       fmt.Sprintf("t%d-s%d", tube, i),
				ThreadID: mt.ThreadID,
				Order:    i,
			})
		}
		manifest.Tubes[tube] = mt
	}
	return manifest
}

func seededCycler(t *testing.T, persister Persister) *Cycler {
	t.Helper()
	state, err := SeedState("user-1", testManifest())
	require.NoError(t, err)
	return New(state, persister)
}

func TestSeedState(t *testing.T) {
	state, err := SeedState("user-1", testManifest())
	require.NoError(t, err)

	assert.Equal(t, 1, state.ActiveTubeNumber)
	require.Len(t, state.Tubes, 3)
	for tube := 1; tube <= 3; tube++ {
		entry := state.Tubes[tube].Positions[0]
		assert.Equal(t, fmt.Sprintf("t%d-s0", tube), entry.StitchID)
		assert.Equal(t, 1, entry.SkipNumber)
		assert.Equal(t, models.DistractorL1, entry.DistractorLevel)
	}
}

func TestSeedStateIncompleteManifest(t *testing.T) {
	manifest := testManifest()
	delete(manifest.Tubes, 2)
	_, err := SeedState("user-1", manifest)
	require.Error(t, err)
}

func TestRotationIsUnconditional(t *testing.T) {
	cycler := seededCycler(t, nil)

	// Alternate perfect and failed outcomes; rotation must not care.
	outcomes := []models.Outcome{
		{CorrectCount: 3, TotalCount: 3},
		{CorrectCount: 1, TotalCount: 3},
		{CorrectCount: 0, TotalCount: 3},
		{CorrectCount: 3, TotalCount: 3},
		{CorrectCount: 2, TotalCount: 3},
	}
	wantActive := []int{2, 3, 1, 2, 3}

	for i, outcome := range outcomes {
		state, err := cycler.CompleteStitch(outcome)
		require.NoError(t, err)
		assert.Equal(t, wantActive[i], state.ActiveTubeNumber, "after completion %d", i+1)
	}
}

func TestRotationSequence(t *testing.T) {
	cycler := seededCycler(t, nil)
	assert.Equal(t, 1, cycler.ActiveTube())

	var seen []int
	for i := 0; i < 4; i++ {
		seen = append(seen, cycler.ActiveTube())
		_, err := cycler.CompleteStitch(models.Outcome{CorrectCount: 2, TotalCount: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 1}, seen)
}

func TestNonPerfectKeepsStitchCurrent(t *testing.T) {
	cycler := seededCycler(t, nil)

	before, err := cycler.CurrentStitch()
	require.NoError(t, err)

	// Fail tube 1, then complete tubes 2 and 3 to come back around.
	_, err = cycler.CompleteStitch(models.Outcome{CorrectCount: 1, TotalCount: 3})
	require.NoError(t, err)
	_, err = cycler.CompleteStitch(models.Outcome{CorrectCount: 3, TotalCount: 3})
	require.NoError(t, err)
	_, err = cycler.CompleteStitch(models.Outcome{CorrectCount: 3, TotalCount: 3})
	require.NoError(t, err)

	after, err := cycler.CurrentStitch()
	require.NoError(t, err)
	assert.Equal(t, before.StitchID, after.StitchID)
	assert.Equal(t, before.SkipNumber, after.SkipNumber)
}

func TestCompleteStitchSchedulesPersistence(t *testing.T) {
	persister := &recordingPersister{}
	cycler := seededCycler(t, persister)

	state, err := cycler.CompleteStitch(models.Outcome{CorrectCount: 2, TotalCount: 2})
	require.NoError(t, err)

	require.Len(t, persister.updates, 1)
	update := persister.updates[0]
	assert.Equal(t, "user-1", update.UserID)
	assert.Equal(t, "thread-1", update.ThreadID)
	assert.Equal(t, "t1-s0", update.StitchID)
	// The write carries the post-advance row.
	assert.Equal(t, 3, update.SkipNumber)
	assert.Equal(t, models.DistractorL2, update.DistractorLevel)

	require.Len(t, persister.snapshots, 1)
	assert.Equal(t, state.LastUpdated, persister.snapshots[0].LastUpdated)
}

func TestCompleteStitchUrgentUsesUrgentPath(t *testing.T) {
	persister := &recordingPersister{}
	cycler := seededCycler(t, persister)

	_, err := cycler.CompleteStitchUrgent(models.Outcome{CorrectCount: 2, TotalCount: 2})
	require.NoError(t, err)

	assert.Empty(t, persister.updates)
	require.Len(t, persister.urgent, 1)
	assert.Equal(t, "t1-s0", persister.urgent[0].StitchID)
	require.Len(t, persister.snapshots, 1)
}

func TestStateReturnsIndependentCopy(t *testing.T) {
	cycler := seededCycler(t, nil)

	state := cycler.State()
	state.Tubes[1].Positions[0] = models.PositionEntry{StitchID: "tampered"}

	current, err := cycler.CurrentStitch()
	require.NoError(t, err)
	assert.Equal(t, "t1-s0", current.StitchID)
}

func TestCompleteStitchMissingTube(t *testing.T) {
	state, err := SeedState("user-1", testManifest())
	require.NoError(t, err)
	delete(state.Tubes, 2)
	cycler := New(state, nil)

	_, err = cycler.CompleteStitch(models.Outcome{CorrectCount: 1, TotalCount: 1})
	require.NoError(t, err)

	_, err = cycler.CompleteStitch(models.Outcome{CorrectCount: 1, TotalCount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoTubeState)
}

func TestLastUpdatedAdvances(t *testing.T) {
	cycler := seededCycler(t, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	cycler.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	first, err := cycler.CompleteStitch(models.Outcome{CorrectCount: 1, TotalCount: 2})
	require.NoError(t, err)
	second, err := cycler.CompleteStitch(models.Outcome{CorrectCount: 2, TotalCount: 2})
	require.NoError(t, err)
	assert.True(t, second.LastUpdated.After(first.LastUpdated))
}

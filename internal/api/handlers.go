package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/triplehelix/internal/database"
	"github.com/example/triplehelix/internal/sequencing"
	"github.com/example/triplehelix/internal/tubes"
	"github.com/example/triplehelix/pkg/models"
)

type stitchResponse struct {
	TubeNumber      int                    `json:"tube_number"`
	DistractorLevel models.DistractorLevel `json:"distractor_level"`
	SkipNumber      int                    `json:"skip_number"`
	Stitch          models.StitchContent   `json:"stitch"`
	ContentSource   string                 `json:"content_source"`
}

func (s *Server) handleCurrentStitch(c *gin.Context) {
	userID := callerID(c)
	cycler, err := s.cyclerFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entry, err := cycler.CurrentStitch()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sequencing.ErrNoCurrentStitch) || errors.Is(err, tubes.ErrNoTubeState) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	stitch, source := s.buffer.Resolve(c.Request.Context(), entry.StitchID)
	c.JSON(http.StatusOK, stitchResponse{
		TubeNumber:      cycler.ActiveTube(),
		DistractorLevel: entry.DistractorLevel,
		SkipNumber:      entry.SkipNumber,
		Stitch:          stitch,
		ContentSource:   source,
	})
}

type completeRequest struct {
	CorrectCount int  `json:"correct_count" binding:"min=0"`
	TotalCount   int  `json:"total_count" binding:"min=0"`
	Urgent       bool `json:"urgent"`
}

func (s *Server) handleComplete(c *gin.Context) {
	userID := callerID(c)

	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CorrectCount > req.TotalCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correct_count exceeds total_count"})
		return
	}

	cycler, err := s.cyclerFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tube := cycler.ActiveTube()
	entry, entryErr := cycler.CurrentStitch()

	outcome := models.Outcome{CorrectCount: req.CorrectCount, TotalCount: req.TotalCount}
	complete := cycler.CompleteStitch
	if req.Urgent {
		complete = cycler.CompleteStitchUrgent
	}
	state, err := complete(outcome)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sequencing.ErrNoCurrentStitch) || errors.Is(err, tubes.ErrNoTubeState) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// Session bookkeeping is best-effort and off the response path.
	if entryErr == nil && outcome.TotalCount > 0 {
		go s.recordSession(userID, state.Tubes[tube].ThreadID, entry.StitchID, outcome)
	}

	c.JSON(http.StatusOK, gin.H{
		"state":  state,
		"points": models.PointsFor(outcome),
	})
}

// recordSession appends the session row and folds it into the profile
// totals. Failures are logged, never surfaced; the play loop does not
// depend on them.
func (s *Server) recordSession(userID, threadID, stitchID string, outcome models.Outcome) {
	ctx := context.Background()
	points := models.PointsFor(outcome)
	result := &models.SessionResult{
		UserID:       userID,
		ThreadID:     threadID,
		StitchID:     stitchID,
		CorrectCount: outcome.CorrectCount,
		TotalCount:   outcome.TotalCount,
		Points:       points,
	}
	if err := s.sessions.Create(ctx, result); err != nil {
		log.Printf("Failed to record session for %s: %v", userID, err)
		return
	}
	if err := s.profiles.AddSession(ctx, userID, points); err != nil {
		log.Printf("Failed to update profile totals for %s: %v", userID, err)
	}
}

func (s *Server) handleState(c *gin.Context) {
	userID := callerID(c)
	cycler, err := s.cyclerFor(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cycler.State())
}

func (s *Server) handleProfile(c *gin.Context) {
	profile, err := s.profiles.GetOrCreate(c.Request.Context(), callerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type migrateRequest struct {
	FromUserID string `json:"from_user_id" binding:"required"`
}

func (s *Server) handleMigrate(c *gin.Context) {
	userID := callerID(c)
	if IsAnonymous(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "migration target must be an authenticated user"})
		return
	}

	var req migrateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !IsAnonymous(req.FromUserID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "migration source must be an anonymous session"})
		return
	}

	if err := database.MigrateOwner(c.Request.Context(), req.FromUserID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.local.RekeySnapshot(req.FromUserID, userID); err != nil {
		log.Printf("Failed to re-key local snapshot %s -> %s: %v", req.FromUserID, userID, err)
	}
	s.dropCycler(req.FromUserID)
	s.dropCycler(userID)

	c.JSON(http.StatusOK, gin.H{"migrated": true})
}

func (s *Server) handleReset(c *gin.Context) {
	userID := callerID(c)
	ctx := c.Request.Context()

	// The only hard-delete path: wipe the rows and snapshot, the next
	// request reseeds from the manifest.
	if err := s.progress.DeleteForUser(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.snapshots.Delete(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.local.DeleteSnapshot(userID); err != nil {
		log.Printf("Failed to clear local snapshot for %s: %v", userID, err)
	}
	s.dropCycler(userID)

	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (s *Server) handleContentStitch(c *gin.Context) {
	stitch, err := s.contentDB.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stitch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "stitch not found"})
		return
	}
	c.JSON(http.StatusOK, stitch)
}

type batchRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

func (s *Server) handleContentBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	batch, err := s.contentDB.GetBatch(c.Request.Context(), req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) handleContentManifest(c *gin.Context) {
	manifest, err := s.contentDB.GetManifest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, manifest)
}

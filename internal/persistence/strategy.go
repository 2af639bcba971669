package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/triplehelix/internal/database"
	"github.com/example/triplehelix/pkg/models"
)

// WriteStrategy is one rung of the gateway's fallback ladder. The
// gateway iterates an ordered slice of these until one succeeds.
type WriteStrategy interface {
	Name() string
	Attempt(ctx context.Context, update models.ProgressUpdate) error
}

// DefaultStrategies builds the standard four-rung ladder: the
// authenticated API path, then progressively blunter writes against
// the store itself. apiBaseURL may be empty, in which case the first
// rung reports itself unconfigured and the ladder continues.
func DefaultStrategies(apiBaseURL, apiToken string) []WriteStrategy {
	repo := database.NewStitchProgressRepository()
	return []WriteStrategy{
		&apiWriteStrategy{
			baseURL: apiBaseURL,
			token:   apiToken,
			client:  &http.Client{Timeout: 10 * time.Second},
		},
		&upsertStrategy{repo: repo},
		&updateInsertStrategy{repo: repo},
		&routineStrategy{repo: repo},
	}
}

// apiWriteStrategy posts the update through the authenticated write
// endpoint.
type apiWriteStrategy struct {
	baseURL string
	token   string
	client  *http.Client
}

func (s *apiWriteStrategy) Name() string { return "authenticated-api" }

func (s *apiWriteStrategy) Attempt(ctx context.Context, update models.ProgressUpdate) error {
	if s.baseURL == "" {
		return fmt.Errorf("write API not configured")
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal update: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/progress", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("write API request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("write API returned status %d", resp.StatusCode)
	}
	return nil
}

// upsertStrategy writes the full row directly with an upsert.
type upsertStrategy struct {
	repo *database.StitchProgressRepository
}

func (s *upsertStrategy) Name() string { return "direct-upsert" }

func (s *upsertStrategy) Attempt(ctx context.Context, update models.ProgressUpdate) error {
	return s.repo.Upsert(ctx, update)
}

// updateInsertStrategy tries an update of the minimal field subset and
// inserts when nothing matched.
type updateInsertStrategy struct {
	repo *database.StitchProgressRepository
}

func (s *updateInsertStrategy) Name() string { return "update-then-insert" }

func (s *updateInsertStrategy) Attempt(ctx context.Context, update models.ProgressUpdate) error {
	return s.repo.UpdateThenInsert(ctx, update)
}

// routineStrategy is the last resort: a server-side routine call.
type routineStrategy struct {
	repo *database.StitchProgressRepository
}

func (s *routineStrategy) Name() string { return "stored-routine" }

func (s *routineStrategy) Attempt(ctx context.Context, update models.ProgressUpdate) error {
	return s.repo.UpsertViaRoutine(ctx, update)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/triplehelix/pkg/models"
)

// ContentRepository handles the authored stitch content tables
type ContentRepository struct{}

// NewContentRepository creates a new repository instance
func NewContentRepository() *ContentRepository {
	return &ContentRepository{}
}

type stitchRow struct {
	ID          string `db:"id"`
	ThreadID    string `db:"thread_id"`
	TubeNumber  int    `db:"tube_number"`
	Title       string `db:"title"`
	Content     string `db:"content"`
	OrderNumber int    `db:"order_number"`
}

type questionRow struct {
	ID            string `db:"id"`
	StitchID      string `db:"stitch_id"`
	Text          string `db:"text"`
	CorrectAnswer string `db:"correct_answer"`
	DistractorL1  string `db:"distractor_l1"`
	DistractorL2  string `db:"distractor_l2"`
	DistractorL3  string `db:"distractor_l3"`
}

// UpsertStitch creates or replaces a stitch and its questions.
func (r *ContentRepository) UpsertStitch(ctx context.Context, tubeNumber int, content models.StitchContent) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO stitches (id, thread_id, tube_number, title, content, order_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			tube_number = EXCLUDED.tube_number,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			order_number = EXCLUDED.order_number
	`, content.ID, content.ThreadID, tubeNumber, content.Title, content.Content, content.Order)
	if err != nil {
		return fmt.Errorf("failed to upsert stitch: %v", err)
	}

	if _, err := DB.ExecContext(ctx, "DELETE FROM questions WHERE stitch_id = $1", content.ID); err != nil {
		return fmt.Errorf("failed to clear stitch questions: %v", err)
	}
	for _, q := range content.Questions {
		_, err := DB.ExecContext(ctx, `
			INSERT INTO questions (id, stitch_id, text, correct_answer, distractor_l1, distractor_l2, distractor_l3)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, q.ID, content.ID, q.Text, q.CorrectAnswer, q.Distractors.L1, q.Distractors.L2, q.Distractors.L3)
		if err != nil {
			return fmt.Errorf("failed to insert question %s: %v", q.ID, err)
		}
	}
	return nil
}

// GetByID loads one stitch with its questions. Returns nil when the
// stitch does not exist.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*models.StitchContent, error) {
	var row stitchRow
	err := DB.GetContext(ctx, &row, "SELECT * FROM stitches WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stitch: %v", err)
	}

	content := rowToContent(row)
	var questions []questionRow
	err = DB.SelectContext(ctx, &questions, "SELECT * FROM questions WHERE stitch_id = $1 ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get stitch questions: %v", err)
	}
	for _, q := range questions {
		content.Questions = append(content.Questions, rowToQuestion(q))
	}
	return &content, nil
}

// GetBatch loads several stitches at once, keyed by id. Missing ids are
// simply absent from the result.
func (r *ContentRepository) GetBatch(ctx context.Context, ids []string) (map[string]models.StitchContent, error) {
	out := make(map[string]models.StitchContent, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In("SELECT * FROM stitches WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch query: %v", err)
	}
	var rows []stitchRow
	if err := DB.SelectContext(ctx, &rows, DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get stitch batch: %v", err)
	}

	query, args, err = sqlx.In("SELECT * FROM questions WHERE stitch_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build question batch query: %v", err)
	}
	var questions []questionRow
	if err := DB.SelectContext(ctx, &questions, DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get question batch: %v", err)
	}
	byStitch := make(map[string][]models.Question)
	for _, q := range questions {
		byStitch[q.StitchID] = append(byStitch[q.StitchID], rowToQuestion(q))
	}

	for _, row := range rows {
		content := rowToContent(row)
		content.Questions = byStitch[row.ID]
		out[row.ID] = content
	}
	return out, nil
}

// GetManifest builds the ordered stitch-id lists per tube.
func (r *ContentRepository) GetManifest(ctx context.Context) (models.Manifest, error) {
	var rows []stitchRow
	err := DB.SelectContext(ctx, &rows, "SELECT * FROM stitches ORDER BY tube_number, order_number")
	if err != nil {
		return models.Manifest{}, fmt.Errorf("failed to load manifest: %v", err)
	}

	manifest := models.Manifest{Tubes: make(map[int]models.ManifestTube)}
	for _, row := range rows {
		mt := manifest.Tubes[row.TubeNumber]
		mt.ThreadID = row.ThreadID
		mt.Stitches = append(mt.Stitches, models.StitchRef{
			ID:       row.ID,
			ThreadID: row.ThreadID,
			Order:    row.OrderNumber,
			Title:    row.Title,
		})
		manifest.Tubes[row.TubeNumber] = mt
	}
	return manifest, nil
}

func rowToContent(row stitchRow) models.StitchContent {
	return models.StitchContent{
		ID:       row.ID,
		ThreadID: row.ThreadID,
		Title:    row.Title,
		Content:  row.Content,
		Order:    row.OrderNumber,
	}
}

func rowToQuestion(row questionRow) models.Question {
	return models.Question{
		ID:            row.ID,
		Text:          row.Text,
		CorrectAnswer: row.CorrectAnswer,
		Distractors: models.DistractorSet{
			L1: row.DistractorL1,
			L2: row.DistractorL2,
			L3: row.DistractorL3,
		},
	}
}

// Package importer fills the authored content tables from spreadsheet
// files. One row per question; consecutive rows with the same stitch id
// collect into one stitch.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/triplehelix/internal/database"
	"github.com/example/triplehelix/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath  string // Path to the Excel or CSV file
	SheetName string // Name of the sheet to import
	StartRow  int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SheetName: "Sheet1",
		StartRow:  2, // By default, start from the second row (skip header)
	}
}

// Column layout, fixed:
//
//	A tube number (1..3)
//	B stitch id
//	C thread id
//	D stitch title
//	E stitch content
//	F order number
//	G question id
//	H question text
//	I correct answer
//	J distractor L1
//	K distractor L2
//	L distractor L3
const columnCount = 12

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	StitchesSaved  int
	Questions      int
	Skipped        int
	Errors         []string
}

// ImportStitches imports stitch content from an Excel or CSV file
func ImportStitches(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		return importFromCSV(ctx, config)
	}
	return importFromExcel(ctx, config)
}

// importFromExcel imports stitches from an Excel file
func importFromExcel(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %v", err)
	}

	var records [][]string
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		records = append(records, row)
	}
	return importRecords(ctx, records)
}

// importFromCSV imports stitches from a CSV file
func importFromCSV(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var records [][]string
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %v", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		records = append(records, row)
	}
	return importRecords(ctx, records)
}

func importRecords(ctx context.Context, records [][]string) (*ImportResult, error) {
	repo := database.NewContentRepository()
	result := &ImportResult{Errors: make([]string, 0)}

	var pending *models.StitchContent
	pendingTube := 0

	flush := func() {
		if pending == nil {
			return
		}
		if err := repo.UpsertStitch(ctx, pendingTube, *pending); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Stitch %s: %v", pending.ID, err))
		} else {
			result.StitchesSaved++
		}
		pending = nil
	}

	for i, row := range records {
		result.TotalProcessed++

		stitch, tube, question, err := parseRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", i+1, err))
			continue
		}

		if pending == nil || pending.ID != stitch.ID {
			flush()
			pending = &stitch
			pendingTube = tube
		}
		pending.Questions = append(pending.Questions, question)
		result.Questions++
	}
	flush()

	return result, nil
}

func parseRow(row []string) (models.StitchContent, int, models.Question, error) {
	if len(row) < columnCount {
		return models.StitchContent{}, 0, models.Question{}, fmt.Errorf("expected %d columns, got %d", columnCount, len(row))
	}
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}

	tube, err := strconv.Atoi(row[0])
	if err != nil || tube < 1 || tube > 3 {
		return models.StitchContent{}, 0, models.Question{}, fmt.Errorf("invalid tube number %q", row[0])
	}
	if row[1] == "" {
		return models.StitchContent{}, 0, models.Question{}, fmt.Errorf("missing stitch id")
	}
	order, err := strconv.Atoi(row[5])
	if err != nil {
		return models.StitchContent{}, 0, models.Question{}, fmt.Errorf("invalid order number %q", row[5])
	}
	if row[7] == "" || row[8] == "" {
		return models.StitchContent{}, 0, models.Question{}, fmt.Errorf("missing question text or answer")
	}

	stitch := models.StitchContent{
		ID:       row[1],
		ThreadID: row[2],
		Title:    row[3],
		Content:  row[4],
		Order:    order,
	}
	question := models.Question{
		ID:            row[6],
		Text:          row[7],
		CorrectAnswer: row[8],
		Distractors: models.DistractorSet{
			L1: row[9],
			L2: row[10],
			L3: row[11],
		},
	}
	return stitch, tube, question, nil
}

// Package excel reads study sets from Excel and CSV files: one row per
// study with an estimate and standard-error column, plus optional weight
// and name columns.
package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"confmeta/domain/study"
)

// StudyReader handles reading study sets from Excel and CSV files.
type StudyReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewStudyReader creates a reader that handles both Excel and CSV files,
// dispatching on the file extension.
func NewStudyReader(filePath string) *StudyReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &StudyReader{filePath: filePath, fileType: fileType}
}

// ReadStudySet reads and validates a study set from the file.
func (r *StudyReader) ReadStudySet() (study.StudySet, error) {
	log.Printf("[StudyReader] Reading %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return study.StudySet{}, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return study.StudySet{}, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return study.StudySet{}, err
	}
	return parseRows(rows)
}

func (r *StudyReader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (r *StudyReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// parseRows maps a header row onto the study columns and parses the data
// rows. Estimate and standard-error columns are required; weight and name
// columns are optional.
func parseRows(rows [][]string) (study.StudySet, error) {
	if len(rows) < 2 {
		return study.StudySet{}, fmt.Errorf("expected a header row and at least one study row, got %d rows", len(rows))
	}

	estCol, seCol, weightCol, nameCol := -1, -1, -1, -1
	for i, h := range rows[0] {
		switch normalizeHeader(h) {
		case "estimate", "effect", "theta", "thetahat":
			estCol = i
		case "se", "standarderror", "stderr":
			seCol = i
		case "weight", "w":
			weightCol = i
		case "name", "study", "label":
			nameCol = i
		}
	}
	if estCol < 0 || seCol < 0 {
		return study.StudySet{}, fmt.Errorf("missing required columns: need an estimate and a standard error column, got header %v", rows[0])
	}

	var set study.StudySet
	if weightCol >= 0 {
		set.Weights = []float64{}
	}
	if nameCol >= 0 {
		set.Names = []string{}
	}
	for lineNo, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		est, err := parseCell(row, estCol)
		if err != nil {
			return study.StudySet{}, fmt.Errorf("row %d: bad estimate: %w", lineNo+2, err)
		}
		se, err := parseCell(row, seCol)
		if err != nil {
			return study.StudySet{}, fmt.Errorf("row %d: bad standard error: %w", lineNo+2, err)
		}
		set.Estimates = append(set.Estimates, est)
		set.StandardErrors = append(set.StandardErrors, se)
		if weightCol >= 0 {
			w, err := parseCell(row, weightCol)
			if err != nil {
				return study.StudySet{}, fmt.Errorf("row %d: bad weight: %w", lineNo+2, err)
			}
			set.Weights = append(set.Weights, w)
		}
		if nameCol >= 0 {
			name := ""
			if nameCol < len(row) {
				name = strings.TrimSpace(row[nameCol])
			}
			set.Names = append(set.Names, name)
		}
	}

	if err := set.Validate(); err != nil {
		return study.StudySet{}, err
	}
	log.Printf("[StudyReader] Loaded %d studies", set.Size())
	return set, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "_", "")
	h = strings.ReplaceAll(h, " ", "")
	h = strings.ReplaceAll(h, ".", "")
	return h
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseCell(row []string, col int) (float64, error) {
	if col >= len(row) {
		return 0, fmt.Errorf("missing value in column %d", col+1)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as a number", row[col])
	}
	return v, nil
}

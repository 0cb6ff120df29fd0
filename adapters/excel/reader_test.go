package excel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadStudySet_CSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studies.csv")
	content := "study,estimate,standard_error,weight\n" +
		"RECOVERY,-0.31,0.08,2\n" +
		"SOLIDARITY,0.04,0.11,1\n" +
		"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	set, err := NewStudyReader(path).ReadStudySet()
	require.NoError(t, err)

	assert.Equal(t, []float64{-0.31, 0.04}, set.Estimates)
	assert.Equal(t, []float64{0.08, 0.11}, set.StandardErrors)
	assert.Equal(t, []float64{2, 1}, set.Weights)
	assert.Equal(t, []string{"RECOVERY", "SOLIDARITY"}, set.Names)
}

func TestReadStudySet_Excel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "studies.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"estimate", "se"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{0.2, 0.05}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{-0.1, 0.07}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	set, err := NewStudyReader(path).ReadStudySet()
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2, -0.1}, set.Estimates)
	assert.Equal(t, []float64{0.05, 0.07}, set.StandardErrors)
	assert.Nil(t, set.Weights)
	assert.Nil(t, set.Names)
}

func TestReadStudySet_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	_, err := NewStudyReader(path).ReadStudySet()
	assert.ErrorContains(t, err, "missing required columns")
}

func TestReadStudySet_BadNumber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("estimate,se\nx,0.1\n"), 0o644))

	_, err := NewStudyReader(path).ReadStudySet()
	assert.ErrorContains(t, err, "bad estimate")
}

func TestReadStudySet_FileNotFound(t *testing.T) {
	_, err := NewStudyReader("/nonexistent/studies.csv").ReadStudySet()
	assert.Error(t, err)
}

func TestReadStudySet_InvalidStandardError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("estimate,se\n0.2,0\n"), 0o644))

	_, err := NewStudyReader(path).ReadStudySet()
	assert.ErrorContains(t, err, "not strictly positive")
}

package services

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

func sampleResult() *models.QueryResult {
	return &models.QueryResult{
		Fields: []string{"id", "name", "amount"},
		Rows: []map[string]any{
			{"id": int64(1), "name": "Ada, Countess", "amount": 10.5},
			{"id": int64(2), "name": nil, "amount": 99.0},
		},
	}
}

func TestResultExporter_WritesAllFormats(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewResultExporter(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	exporter.WriteAll("abc", sampleResult())

	t.Run("csv", func(t *testing.T) {
		f, err := os.Open(filepath.Join(dir, "abc.csv"))
		require.NoError(t, err)
		defer f.Close()

		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"id", "name", "amount"},
			{"1", "Ada, Countess", "10.5"},
			{"2", "", "99"},
		}, records)
	})

	t.Run("xlsx", func(t *testing.T) {
		f, err := excelize.OpenFile(filepath.Join(dir, "abc.xlsx"))
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{XLSXSheetName}, f.GetSheetList())
		rows, err := f.GetRows(XLSXSheetName)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"id", "name", "amount"}, rows[0])
		assert.Equal(t, "Ada, Countess", rows[1][1])
	})

	t.Run("json", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "abc.json"))
		require.NoError(t, err)

		var rows []map[string]any
		require.NoError(t, json.Unmarshal(data, &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "Ada, Countess", rows[0]["name"])
		assert.Nil(t, rows[1]["name"])
	})
}

func TestResultExporter_Path(t *testing.T) {
	exporter, err := NewResultExporter(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = exporter.Path("abc", "pdf")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	for _, key := range []string{"", "../etc/passwd", "a/b", ".hidden"} {
		_, err = exporter.Path(key, ExportFormatCSV)
		assert.ErrorIs(t, err, apperrors.ErrValidation, key)
	}
}

func TestResultExporter_WriteFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewResultExporter(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	// A directory in the way makes the csv write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "abc.csv"), 0o750))

	exporter.WriteAll("abc", sampleResult())

	_, err = os.Stat(filepath.Join(dir, "abc.json"))
	assert.NoError(t, err, "other formats are still written")
}

func TestResultExporter_RemoveIgnoresMissingFiles(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewResultExporter(dir, zaptest.NewLogger(t))
	require.NoError(t, err)

	exporter.WriteJSON("abc", sampleResult())
	require.NoError(t, exporter.Remove("abc"))

	_, err = os.Stat(filepath.Join(dir, "abc.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSanitizeQueryName(t *testing.T) {
	day := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty uses default", "", "Query Results 2024-03-01"},
		{"blank uses default", "   ", "Query Results 2024-03-01"},
		{"plain", "Sales by region", "Sales by region 2024-03-01"},
		{"unsafe chars removed", `a/b\c:d*e?f"g<h>i|j`, "abcdefghij 2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeQueryName(tt.input, day))
		})
	}

	long := SanitizeQueryName(strings.Repeat("x", 400), day)
	assert.LessOrEqual(t, len(long), 255)
}

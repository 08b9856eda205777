package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/apperrors"
	"github.com/ekaya-inc/querypad/pkg/models"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
	ExportFormatJSON = "json"
)

// ExportFormats lists every format written for a cached result.
var ExportFormats = []string{ExportFormatCSV, ExportFormatXLSX, ExportFormatJSON}

// XLSXSheetName is the worksheet holding exported rows.
const XLSXSheetName = "query-results"

// DefaultQueryName is used when a result has no query name.
const DefaultQueryName = "Query Results"

// ResultExporter writes query results as downloadable files named by cache key.
type ResultExporter interface {
	// WriteAll writes every export format. Failures are logged, never returned.
	WriteAll(cacheKey string, result *models.QueryResult)

	WriteCSV(cacheKey string, result *models.QueryResult)
	WriteXLSX(cacheKey string, result *models.QueryResult)
	WriteJSON(cacheKey string, result *models.QueryResult)

	// Path returns the file path for cacheKey in format.
	// Returns a validation error for an unknown format or unsafe key.
	Path(cacheKey, format string) (string, error)

	// Remove deletes every export file for cacheKey. Missing files are ignored.
	Remove(cacheKey string) error
}

type fileResultExporter struct {
	dir    string
	logger *zap.Logger
}

// NewResultExporter creates dir if needed and returns an exporter writing into it.
func NewResultExporter(dir string, logger *zap.Logger) (ResultExporter, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &fileResultExporter{dir: dir, logger: logger.Named("result-export")}, nil
}

var _ ResultExporter = (*fileResultExporter)(nil)

func (e *fileResultExporter) Path(cacheKey, format string) (string, error) {
	switch format {
	case ExportFormatCSV, ExportFormatXLSX, ExportFormatJSON:
	default:
		return "", apperrors.NewValidationError("unknown export format %q", format)
	}
	if cacheKey == "" || cacheKey != filepath.Base(cacheKey) || strings.HasPrefix(cacheKey, ".") {
		return "", apperrors.NewValidationError("invalid cache key %q", cacheKey)
	}
	return filepath.Join(e.dir, cacheKey+"."+format), nil
}

func (e *fileResultExporter) WriteAll(cacheKey string, result *models.QueryResult) {
	e.WriteCSV(cacheKey, result)
	e.WriteXLSX(cacheKey, result)
	e.WriteJSON(cacheKey, result)
}

func (e *fileResultExporter) WriteCSV(cacheKey string, result *models.QueryResult) {
	e.write(cacheKey, ExportFormatCSV, result, writeCSV)
}

func (e *fileResultExporter) WriteXLSX(cacheKey string, result *models.QueryResult) {
	e.write(cacheKey, ExportFormatXLSX, result, writeXLSX)
}

func (e *fileResultExporter) WriteJSON(cacheKey string, result *models.QueryResult) {
	e.write(cacheKey, ExportFormatJSON, result, writeJSON)
}

func (e *fileResultExporter) write(cacheKey, format string, result *models.QueryResult, fn func(string, *models.QueryResult) error) {
	path, err := e.Path(cacheKey, format)
	if err == nil {
		err = fn(path, result)
	}
	if err != nil {
		e.logger.Error("Failed to write export",
			zap.String("cache_key", cacheKey),
			zap.String("format", format),
			zap.Error(err),
		)
	}
}

func (e *fileResultExporter) Remove(cacheKey string) error {
	var errs []error
	for _, format := range ExportFormats {
		path, err := e.Path(cacheKey, format)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeCSV(path string, result *models.QueryResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(result.Fields); err != nil {
		return err
	}
	record := make([]string, len(result.Fields))
	for _, row := range result.Rows {
		for i, field := range result.Fields {
			record[i] = exportString(row[field])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeXLSX(path string, result *models.QueryResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), XLSXSheetName); err != nil {
		return err
	}

	header := make([]any, len(result.Fields))
	for i, field := range result.Fields {
		header[i] = field
	}
	if err := f.SetSheetRow(XLSXSheetName, "A1", &header); err != nil {
		return err
	}

	for r, row := range result.Rows {
		values := make([]any, len(result.Fields))
		for i, field := range result.Fields {
			values[i] = xlsxValue(row[field])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(XLSXSheetName, cell, &values); err != nil {
			return err
		}
	}

	return f.SaveAs(path)
}

func writeJSON(path string, result *models.QueryResult) error {
	rows := result.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}

func exportString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// xlsxValue keeps numbers, booleans and times native so spreadsheets can compute on them.
func xlsxValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	default:
		return exportString(val)
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[/\\?<>:*|"\x00-\x1f\x7f]`)

// SanitizeQueryName builds a filename-safe display name: the query name, or
// DefaultQueryName when empty, followed by the date.
func SanitizeQueryName(name string, now time.Time) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultQueryName
	}
	out := unsafeFilenameChars.ReplaceAllString(name+" "+now.Format("2006-01-02"), "")
	out = strings.TrimRight(out, ". ")
	if len(out) > 255 {
		out = strings.ToValidUTF8(out[:255], "")
	}
	return out
}

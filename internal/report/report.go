// Package report writes the per-segment audit report. The column order is
// fixed and part of the external contract; downstream review tooling indexes
// columns by position.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pkuleshov/langaudit/internal/types"
)

// Columns is the fixed report header.
var Columns = []string{
	"Audio Filename",
	"Start Time (s)",
	"End Time (s)",
	"Is Flagged",
	"Flag Reason",
	"Transcription",
	"Detected Language",
	"Confidence Score",
}

// Write emits one row per segment, in the given order, to path. The format
// follows the extension: .csv writes CSV, anything else writes an xlsx
// workbook.
func Write(path string, rows []types.Segment) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return writeCSV(path, rows)
	}
	return writeXLSX(path, rows)
}

func writeXLSX(path string, rows []types.Segment) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for i, s := range rows {
		cells := []any{
			s.File,
			s.StartSec(),
			s.EndSec(),
			s.Flagged,
			s.ReasonText(),
			s.Text,
			s.Language,
			s.Confidence,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("report: write row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func writeCSV(path string, rows []types.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for i, s := range rows {
		rec := []string{
			s.File,
			strconv.FormatFloat(s.StartSec(), 'f', -1, 64),
			strconv.FormatFloat(s.EndSec(), 'f', -1, 64),
			strconv.FormatBool(s.Flagged),
			s.ReasonText(),
			s.Text,
			s.Language,
			strconv.FormatFloat(s.Confidence, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("report: write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush: %w", err)
	}
	return nil
}

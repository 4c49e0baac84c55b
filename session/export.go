package session

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// flightLogName matches the combined capture artifact the recorder writes.
const flightLogName = "flight.csv"

// ExportFlightXLSX renders a captured flight log as an Excel workbook with
// one row per sample. The first CSV row is the column header.
func ExportFlightXLSX(captureDir string) (*bytes.Buffer, error) {
	file, err := os.Open(filepath.Join(captureDir, flightLogName))
	if err != nil {
		return nil, fmt.Errorf("session: failed to open flight log: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("session: failed to read flight log: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("session: flight log is empty")
	}

	wb := excelize.NewFile()
	defer wb.Close()

	const sheet = "Flight"
	index, err := wb.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("session: failed to create sheet: %w", err)
	}
	wb.SetActiveSheet(index)
	wb.DeleteSheet("Sheet1")

	for rowIdx, record := range records {
		for colIdx, value := range record {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, fmt.Errorf("session: failed to compute cell name: %w", err)
			}
			// Header row stays text; data cells become numbers where they parse.
			if rowIdx > 0 {
				if num, parseErr := strconv.ParseFloat(value, 64); parseErr == nil {
					if err := wb.SetCellValue(sheet, cell, num); err != nil {
						return nil, fmt.Errorf("session: failed to set cell: %w", err)
					}
					continue
				}
			}
			if err := wb.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("session: failed to set cell: %w", err)
			}
		}
	}

	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("session: failed to render workbook: %w", err)
	}
	return buf, nil
}

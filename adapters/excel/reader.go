// Package excel reads monthly price-change panels from Excel workbooks or
// CSV files. A workbook holds one sheet per index base; each sheet carries a
// header row with item names, a weights row, and one dated row of price
// changes per month.
package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"infleval/domain/series"
	"infleval/internal/errors"
)

// DataReader handles reading Excel and CSV panel files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadSeries reads every listed sheet as one panel and assembles them, in
// order, into a multi-base series. With no sheet names given it reads all
// sheets in workbook order. CSV files always yield a single-panel series.
func (r *DataReader) ReadSeries(sheets ...string) (*series.MultiPanelSeries, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("data file not found: %s", r.filePath))
	}

	var panels []*series.Panel
	switch r.fileType {
	case "csv":
		p, err := r.readCSVPanel()
		if err != nil {
			return nil, err
		}
		panels = []*series.Panel{p}
	case "xlsx":
		var err error
		panels, err = r.readExcelPanels(sheets)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", r.fileType))
	}
	return series.NewSeries(panels...)
}

func (r *DataReader) readExcelPanels(sheets []string) ([]*series.Panel, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening Excel file")
	}
	defer f.Close()

	if len(sheets) == 0 {
		sheets = f.GetSheetList()
	}
	if len(sheets) == 0 {
		return nil, errors.InvalidInput("workbook has no sheets")
	}

	panels := make([]*series.Panel, 0, len(sheets))
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, errors.Wrapf(err, "reading sheet %s", sheet)
		}
		p, err := parsePanel(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "sheet %s", sheet)
		}
		panels = append(panels, p)
	}
	return panels, nil
}

func (r *DataReader) readCSVPanel() (*series.Panel, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading CSV file")
	}
	return parsePanel(rows)
}

// parsePanel turns raw sheet rows into a panel. Layout:
//
//	row 1: Date, item 1, item 2, ...
//	row 2: Weights, w1, w2, ...
//	row 3+: YYYY-MM, v1, v2, ...
func parsePanel(rows [][]string) (*series.Panel, error) {
	if len(rows) < 3 {
		return nil, errors.InvalidInput("need a header row, a weights row and at least one data row")
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, errors.InvalidInput("header row has no item columns")
	}
	items := len(header) - 1

	weightsRow := rows[1]
	if len(weightsRow) != items+1 {
		return nil, errors.ShapeMismatch(fmt.Sprintf(
			"weights row has %d columns, header has %d", len(weightsRow), len(header)))
	}
	weights := make([]float64, items)
	for j := 0; j < items; j++ {
		w, err := strconv.ParseFloat(strings.TrimSpace(weightsRow[j+1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing weight for %s", header[j+1])
		}
		weights[j] = w
	}

	data := rows[2:]
	var start time.Time
	values := make([][]float64, len(data))
	for i, row := range data {
		if len(row) != items+1 {
			return nil, errors.ShapeMismatch(fmt.Sprintf(
				"data row %d has %d columns, expected %d", i+3, len(row), items+1))
		}
		date, err := parseMonth(row[0])
		if err != nil {
			return nil, errors.Wrapf(err, "data row %d", i+3)
		}
		if i == 0 {
			start = date
		} else if !date.Equal(start.AddDate(0, i, 0)) {
			return nil, errors.InvalidInput(fmt.Sprintf(
				"data row %d has date %s, expected consecutive month %s",
				i+3, date.Format("2006-01"), start.AddDate(0, i, 0).Format("2006-01")))
		}
		values[i] = make([]float64, items)
		for j := 0; j < items; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j+1]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing value at row %d column %d", i+3, j+2)
			}
			values[i][j] = v
		}
	}

	return series.NewPanelFrom(values, weights, start, 100)
}

var monthLayouts = []string{"2006-01", "2006-01-02", "01/2006", "Jan-06"}

func parseMonth(cell string) (time.Time, error) {
	cell = strings.TrimSpace(cell)
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return series.MonthStart(t), nil
		}
	}
	// Excel serial date fallback
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return series.MonthStart(t), nil
		}
	}
	return time.Time{}, errors.InvalidInput(fmt.Sprintf("cannot parse date cell %q", cell))
}

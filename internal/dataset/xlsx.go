package dataset

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"sales-assistant/internal/models"
)

// XLSXSource reads the first sheet (or Sheet, when set) of a workbook whose
// first row is the header.
type XLSXSource struct {
	Path  string
	Sheet string
}

func NewXLSXSource(path, sheet string) *XLSXSource {
	return &XLSXSource{Path: path, Sheet: sheet}
}

func (s *XLSXSource) Name() string { return "xlsx:" + s.Path }

func (s *XLSXSource) Load(ctx context.Context) ([]models.Transaction, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(ctx, f, s.Sheet)
}

func readWorkbook(ctx context.Context, f *excelize.File, sheet string) ([]models.Transaction, error) {
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	// Raw values keep dates as serial numbers instead of display strings.
	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	columns, err := mapHeader(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]models.Transaction, 0, len(records)-1)
	for i, record := range records[1:] {
		if i%batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if tx, ok := columns.row(record).transaction(parseSheetDate); ok {
			rows = append(rows, tx)
		}
	}
	return dedupe(rows), nil
}

// parseSheetDate accepts the text layouts plus spreadsheet serial dates.
func parseSheetDate(s string) (time.Time, bool) {
	if t, ok := parseDate(s); ok {
		return t, true
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

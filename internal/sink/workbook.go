package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/chiranSam/job-application-form/internal/models"
)

// WorkbookSheet is the sheet applications are appended to
const WorkbookSheet = "Applications"

// cvLinkColumn is the 1-based column holding the CV link
var cvLinkColumn = len(models.RecordColumns) - 1

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// WorkbookSink appends records to a local .xlsx file. Appends are serialized;
// the file is created with a header row on first use.
type WorkbookSink struct {
	mu   sync.Mutex
	path string
}

// NewWorkbookSink creates a sink writing to path, adding .xlsx if missing
func NewWorkbookSink(path string) *WorkbookSink {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path = path + ".xlsx"
	}
	return &WorkbookSink{path: filepath.Clean(path)}
}

// Path returns the workbook location
func (s *WorkbookSink) Path() string {
	return s.path
}

// Append writes record as the next row of the workbook
func (s *WorkbookSink) Append(ctx context.Context, record models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(WorkbookSheet)
	if err != nil {
		return fmt.Errorf("failed to read workbook rows: %w", err)
	}
	row := len(rows) + 1

	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := record.Row()
	if err := f.SetSheetRow(WorkbookSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}

	if record.CVLink != "" {
		linkCell, err := excelize.CoordinatesToCellName(cvLinkColumn, row)
		if err != nil {
			return err
		}
		if err := f.SetCellHyperLink(WorkbookSheet, linkCell, record.CVLink, "External"); err != nil {
			return fmt.Errorf("failed to link CV cell: %w", err)
		}
		linkStyle, err := f.NewStyle(&excelize.Style{
			Font:   &excelize.Font{Color: "0563C1", Underline: "single"},
			Border: thinBorder,
		})
		if err == nil {
			f.SetCellStyle(WorkbookSheet, linkCell, linkCell, linkStyle)
		}
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// open loads the workbook, creating it with a header row when absent
func (s *WorkbookSink) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(WorkbookSheet); idx < 0 {
			f.Close()
			return nil, fmt.Errorf("workbook %s has no %q sheet", s.path, WorkbookSheet)
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create workbook directory: %w", err)
		}
	}

	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", WorkbookSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeHeader(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header row: %w", err)
	}
	return f, nil
}

func writeHeader(f *excelize.File) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	for col, header := range models.RecordColumns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(WorkbookSheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(WorkbookSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	last, err := excelize.ColumnNumberToName(len(models.RecordColumns))
	if err != nil {
		return err
	}
	f.SetColWidth(WorkbookSheet, "A", last, 25)

	// Freeze top row
	return f.SetPanes(WorkbookSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      0,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

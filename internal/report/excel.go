package report

import (
	"bytes"
	"fmt"

	"github.com/frahmantamala/attendance-management/internal/attendance"
	"github.com/xuri/excelize/v2"
)

const (
	rangeSheet   = "Attendance"
	clockLayout  = "15:04"
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RenderRangeXLSX writes the grid as a workbook: one row per employee and
// an IN / OUT / HOURS column triple per day, followed by totals.
func RenderRangeXLSX(r *RangeReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), rangeSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"Employee Code", "Name", "Department"}
	for _, d := range r.Days {
		header = append(header, d+" IN", d+" OUT", d+" HOURS")
	}
	header = append(header, "Days Present", "Total Hours")

	if err := f.SetSheetRow(rangeSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(rangeSheet, "A1", lastCol+"1", bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	for i, row := range r.Rows {
		values := []interface{}{row.EmployeeCode, row.Name, row.Department}
		for _, c := range row.Cells {
			in, out := "", ""
			if c.In != nil {
				in = c.In.Format(clockLayout)
			}
			if c.Out != nil {
				out = c.Out.Format(clockLayout)
			}
			if c.Status == attendance.StatusAbsent {
				in = "ABSENT"
			}
			values = append(values, in, out, c.Hours)
		}
		values = append(values, row.DaysPresent, row.TotalHours)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(rangeSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(rangeSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      3,
		YSplit:      1,
		TopLeftCell: "D2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

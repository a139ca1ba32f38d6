package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/redsalud/turnos-board/internal/domain"
)

const sheetName = "Turnos"

// BuildWorkbook serializes rows into a single-sheet XLSX workbook with a
// styled header row and frozen panes, mirroring the CSV export column set.
func BuildWorkbook(rows []domain.Turno, columns []string) ([]byte, error) {
	if len(columns) == 0 {
		columns = DefaultColumns
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2E7D32"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return nil, fmt.Errorf("resolve last column: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 18); err != nil {
		return nil, fmt.Errorf("set column widths: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	record := make([]interface{}, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = row.Field(col)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("resolve cell: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

package audit

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Unit Changes"

// ExportXLSX renders audit rows as an Excel workbook for compliance review.
func ExportXLSX(rows []Change) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("audit: new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("audit: delete default sheet: %w", err)
	}

	headers := []string{"ID", "Table", "Record ID", "Field", "Old Unit ID", "New Unit ID", "Changed By", "Changed At", "Reason"}
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("audit: header cell: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, header); err != nil {
			return nil, fmt.Errorf("audit: set header: %w", err)
		}
	}

	for i, row := range rows {
		values := []interface{}{
			row.ID,
			row.TableName,
			row.RecordID,
			row.FieldName,
			optionalID(row.OldUnitID),
			optionalID(row.NewUnitID),
			row.ChangedBy,
			row.ChangedAt.Format("2006-01-02 15:04:05"),
			row.ChangeReason,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("audit: data cell: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return nil, fmt.Errorf("audit: set cell: %w", err)
			}
		}
	}

	if err := f.SetColWidth(exportSheet, "B", "B", 24); err != nil {
		return nil, fmt.Errorf("audit: col width: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "H", "I", 28); err != nil {
		return nil, fmt.Errorf("audit: col width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("audit: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalID(id *int64) interface{} {
	if id == nil {
		return ""
	}
	return *id
}

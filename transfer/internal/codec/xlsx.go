package codec

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// xlsxCodec handles Excel workbooks. Options: "sheet" (string, defaults to
// the first sheet on decode and "Sheet1" on encode), "header" (bool,
// default true).
type xlsxCodec struct{}

func (xlsxCodec) Decode(data []byte, opts Options) (*transfertypes.Payload, error) {
	sheet, err := optString(opts, "sheet")
	if err != nil {
		return nil, err
	}
	header, err := optBool(opts, "header", true)
	if err != nil {
		return nil, err
	}

	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer file.Close()

	if sheet == "" {
		sheet = file.GetSheetName(0)
	}
	records, err := file.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx: decode sheet %q: %w", sheet, err)
	}
	if len(records) == 0 {
		return &transfertypes.Payload{Table: &transfertypes.Table{}}, nil
	}

	var columns []string
	body := records
	if header {
		columns = records[0]
		body = records[1:]
	} else {
		width := 0
		for _, record := range records {
			if len(record) > width {
				width = len(record)
			}
		}
		for i := 0; i < width; i++ {
			columns = append(columns, "column_"+strconv.Itoa(i))
		}
	}

	rows := make([]map[string]any, 0, len(body))
	for _, record := range body {
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &transfertypes.Payload{Table: &transfertypes.Table{Columns: columns, Rows: rows}}, nil
}

func (xlsxCodec) Encode(table *transfertypes.Table, opts Options) ([]byte, error) {
	sheet, err := optString(opts, "sheet")
	if err != nil {
		return nil, err
	}
	header, err := optBool(opts, "header", true)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	defer file.Close()
	if sheet != "" && sheet != "Sheet1" {
		if err := file.SetSheetName("Sheet1", sheet); err != nil {
			return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
		}
	} else {
		sheet = "Sheet1"
	}

	columns := columnsOf(table)
	rowIndex := 1
	if header {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = col
		}
		if err := setRow(file, sheet, rowIndex, cells); err != nil {
			return nil, err
		}
		rowIndex++
	}
	for _, row := range table.Rows {
		cells := make([]any, len(columns))
		for i, col := range columns {
			cells[i] = row[col]
		}
		if err := setRow(file, sheet, rowIndex, cells); err != nil {
			return nil, err
		}
		rowIndex++
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(file *excelize.File, sheet string, index int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, index)
	if err != nil {
		return fmt.Errorf("xlsx: encode row %d: %w", index, err)
	}
	if err := file.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("xlsx: encode row %d: %w", index, err)
	}
	return nil
}

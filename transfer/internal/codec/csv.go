package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// csvCodec handles delimited text. Options: "delimiter" (string, single
// rune, default ","), "header" (bool, default true).
type csvCodec struct{}

func (csvCodec) Decode(data []byte, opts Options) (*transfertypes.Payload, error) {
	comma, err := csvDelimiter(opts)
	if err != nil {
		return nil, err
	}
	header, err := optBool(opts, "header", true)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: decode: %w", err)
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

func (csvCodec) Encode(table *transfertypes.Table, opts Options) ([]byte, error) {
	comma, err := csvDelimiter(opts)
	if err != nil {
		return nil, err
	}
	header, err := optBool(opts, "header", true)
	if err != nil {
		return nil, err
	}

	columns := columnsOf(table)
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = comma

	if header {
		if err := writer.Write(columns); err != nil {
			return nil, fmt.Errorf("csv: encode header: %w", err)
		}
	}
	record := make([]string, len(columns))
	for _, row := range table.Rows {
		for i, col := range columns {
			record[i] = formatCell(row[col])
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("csv: encode row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("csv: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func csvDelimiter(opts Options) (rune, error) {
	s, err := optString(opts, "delimiter")
	if err != nil {
		return 0, err
	}
	if s == "" {
		return ',', nil
	}
	runes := []rune(s)
	if len(runes) != 1 {
		return 0, fmt.Errorf("csv: option \"delimiter\" must be a single character, got %q", s)
	}
	return runes[0], nil
}

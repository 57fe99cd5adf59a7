package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// jsonCodec handles whole-document JSON: an array of flat objects.
type jsonCodec struct{}

func (jsonCodec) Decode(data []byte, _ Options) (*transfertypes.Payload, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("json: decode: %w", err)
	}
	table := &transfertypes.Table{Rows: rows}
	table.Columns = columnsOf(table)
	return &transfertypes.Payload{Table: table}, nil
}

func (jsonCodec) Encode(table *transfertypes.Table, _ Options) ([]byte, error) {
	rows := table.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("json: encode: %w", err)
	}
	return data, nil
}

// jsonLinesCodec handles record-per-line JSON (.jsonl / .ndjson).
type jsonLinesCodec struct{}

func (jsonLinesCodec) Decode(data []byte, _ Options) (*transfertypes.Payload, error) {
	var rows []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(text, &row); err != nil {
			return nil, fmt.Errorf("jsonl: decode line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonl: decode: %w", err)
	}
	table := &transfertypes.Table{Rows: rows}
	table.Columns = columnsOf(table)
	return &transfertypes.Payload{Table: table}, nil
}

func (jsonLinesCodec) Encode(table *transfertypes.Table, _ Options) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	for i, row := range table.Rows {
		if err := encoder.Encode(row); err != nil {
			return nil, fmt.Errorf("jsonl: encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

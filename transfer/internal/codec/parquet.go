package codec

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/colpal/dataeng-container-tools/transfer/transfertypes"
)

// parquetCodec reads and writes Apache Parquet files. Rows are surfaced as
// generic maps; on encode the schema is inferred from the first non-nil
// value observed per column, with every field optional so sparse rows
// round-trip as nulls.
type parquetCodec struct{}

func (parquetCodec) Decode(data []byte, _ Options) (*transfertypes.Payload, error) {
	reader := bytes.NewReader(data)
	file, err := parquet.OpenFile(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet: open: %w", err)
	}

	fields := file.Schema().Fields()
	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		columns = append(columns, f.Name())
	}

	rows, err := parquet.Read[map[string]any](reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parquet: decode: %w", err)
	}

	return &transfertypes.Payload{Table: &transfertypes.Table{
		Columns: columns,
		Rows:    rows,
	}}, nil
}

func (parquetCodec) Encode(table *transfertypes.Table, _ Options) ([]byte, error) {
	columns := columnsOf(table)

	group := parquet.Group{}
	for _, col := range columns {
		group[col] = parquet.Optional(inferNode(table.Rows, col))
	}
	schema := parquet.NewSchema("table", group)

	buf := &bytes.Buffer{}
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	for i, row := range table.Rows {
		compact := make(map[string]any, len(row))
		for _, col := range columns {
			if v, ok := row[col]; ok && v != nil {
				compact[col] = v
			}
		}
		if _, err := writer.Write([]map[string]any{compact}); err != nil {
			return nil, fmt.Errorf("parquet: encode row %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("parquet: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// inferNode picks a parquet node for a column from the first non-nil value.
// Columns with no values default to strings.
func inferNode(rows []map[string]any, col string) parquet.Node {
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
			continue
		case bool:
			return parquet.Leaf(parquet.BooleanType)
		case int, int32, int64:
			return parquet.Int(64)
		case float32, float64:
			return parquet.Leaf(parquet.DoubleType)
		case []byte:
			return parquet.Leaf(parquet.ByteArrayType)
		default:
			return parquet.String()
		}
	}
	return parquet.String()
}

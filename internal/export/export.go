// Package export writes query results as JSON, CSV or XLSX tables.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/nodequery/internal/domain"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// DefaultSheet is the XLSX sheet results are written to.
const DefaultSheet = "Nodes"

// Write encodes nodes to w in format.
func Write(w io.Writer, format string, nodes []*domain.Node) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return WriteJSON(w, nodes)
	case FormatCSV:
		return WriteCSV(w, nodes)
	case FormatXLSX:
		return WriteXLSX(w, nodes)
	}
	return fmt.Errorf("unknown export format %q", format)
}

// WriteJSON writes the flat node documents as an indented JSON array.
func WriteJSON(w io.Writer, nodes []*domain.Node) error {
	if nodes == nil {
		nodes = []*domain.Node{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nodes); err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}
	return nil
}

// WriteCSV writes one header row followed by one row per node.
func WriteCSV(w io.Writer, nodes []*domain.Node) error {
	headers, rows := Table(nodes)
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := csvWriter.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteXLSX writes the table to the DefaultSheet of a new workbook.
func WriteXLSX(w io.Writer, nodes []*domain.Node) error {
	headers, rows := Table(nodes)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), DefaultSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := setRow(f, 1, headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, index int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, index)
	if err != nil {
		return fmt.Errorf("row %d: %w", index, err)
	}
	row := make([]any, len(values))
	for i, value := range values {
		row[i] = value
	}
	if err := f.SetSheetRow(DefaultSheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", index, err)
	}
	return nil
}

// Table flattens nodes into string rows. Columns are id, type and parent
// followed by the union of field names in sorted order.
func Table(nodes []*domain.Node) ([]string, [][]string) {
	seen := make(map[string]struct{})
	for _, node := range nodes {
		for name := range node.Fields {
			if !domain.IsReservedField(name) {
				seen[name] = struct{}{}
			}
		}
	}
	fieldNames := make([]string, 0, len(seen))
	for name := range seen {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	headers := append([]string{domain.FieldID, "type", domain.FieldParent}, fieldNames...)
	rows := make([][]string, 0, len(nodes))
	for _, node := range nodes {
		row := make([]string, len(headers))
		row[0] = node.ID
		row[1] = node.Internal.Type
		row[2] = node.Parent
		for i, name := range fieldNames {
			row[i+3] = formatValue(node.Fields[name])
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case json.Number:
		return v.String()
	case float32, float64, int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%v", v)
	case *domain.Node:
		return v.ID
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

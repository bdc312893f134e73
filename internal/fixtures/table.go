package fixtures

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/nodequery/internal/domain"
)

// Table column names with special meaning. Every other column becomes a
// field; dotted headers (frontmatter.title) become nested objects.
const (
	ColumnID     = "id"
	ColumnType   = "type"
	ColumnParent = "parent"
)

// ParseTable turns CSV or XLSX data ("csv" or "xlsx") into node documents.
// The first non-empty row is the header. Rows without a type column value
// get defaultType. Empty cells are left out of the document.
func ParseTable(data []byte, format, defaultType string) ([]map[string]any, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case "csv":
		records, err = parseCSV(data)
	case "xlsx":
		records, err = parseExcel(data)
	default:
		return nil, fmt.Errorf("unknown table format %q", format)
	}
	if err != nil {
		return nil, err
	}

	headers, rows, err := normalizeTable(records)
	if err != nil {
		return nil, err
	}

	docs := make([]map[string]any, 0, len(rows))
	for rowIndex, row := range rows {
		doc := make(map[string]any, len(headers))
		typeName := defaultType
		for i, header := range headers {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			if cell == "" {
				continue
			}
			switch header {
			case ColumnID, ColumnParent:
				doc[header] = cell
			case ColumnType:
				typeName = cell
			default:
				setPath(doc, domain.SplitPath(header), cell)
			}
		}
		if typeName == "" {
			return nil, fmt.Errorf("row %d: no type column and no default type", rowIndex+1)
		}
		doc[domain.FieldInternal] = map[string]any{"type": typeName}
		docs = append(docs, doc)
	}
	return docs, nil
}

func parseCSV(data []byte) ([][]string, error) {
	csvReader := csv.NewReader(bytes.NewReader(data))
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

func normalizeTable(records [][]string) ([]string, [][]string, error) {
	var (
		headerRow []string
		dataRows  [][]string
	)
	for _, row := range records {
		if isEmptyRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}
	if headerRow == nil {
		return nil, nil, errors.New("no rows found in table")
	}
	return sanitizeHeaders(headerRow), dataRows, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// sanitizeHeaders trims headers, replaces spaces and dashes with
// underscores, names blank columns and suffixes duplicates.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1
		headers[idx] = name
	}
	return headers
}

func setPath(doc map[string]any, path []string, value any) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		doc[path[0]] = value
		return
	}
	child, ok := doc[path[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		doc[path[0]] = child
	}
	setPath(child, path[1:], value)
}

package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/xuri/excelize/v2"
)

// DefaultMaxSpreadsheetBytes caps spreadsheet payloads before they are opened.
const DefaultMaxSpreadsheetBytes int64 = 5 << 20

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	xmlRecordElements = map[string]struct{}{
		"shipment":    {},
		"record":      {},
		"trade":       {},
		"transaction": {},
	}
)

// Column is one source cell keyed by its header.
type Column struct {
	Name  string
	Value string
}

// RawRecord is a source row before normalization.
type RawRecord struct {
	RowNumber int
	Columns   []Column
}

// Map returns the row as header to value. Later duplicate headers do not overwrite earlier ones.
func (r RawRecord) Map() map[string]string {
	out := make(map[string]string, len(r.Columns))
	for _, col := range r.Columns {
		if _, exists := out[col.Name]; exists {
			continue
		}
		out[col.Name] = col.Value
	}
	return out
}

func (r RawRecord) hasValue() bool {
	for _, col := range r.Columns {
		if strings.TrimSpace(col.Value) != "" {
			return true
		}
	}
	return false
}

// RowIssue reports a source row that could not be read.
type RowIssue struct {
	RowNumber int
	Message   string
	Raw       map[string]string
}

// ParseResult holds the records read from a file and the rows skipped on the way.
type ParseResult struct {
	Records []RawRecord
	Skipped []RowIssue
}

// ParseOptions tunes parser limits.
type ParseOptions struct {
	MaxSpreadsheetBytes int64
}

// DetectFormat resolves the file format. A recognised declared format wins over the extension.
func DetectFormat(fileName string, declared string) (domain.FileFormat, error) {
	if strings.TrimSpace(declared) != "" {
		if format, ok := domain.ParseFileFormat(declared); ok {
			return format, nil
		}
	}
	if format, ok := domain.FileFormatFromName(fileName); ok {
		return format, nil
	}
	if strings.TrimSpace(declared) != "" {
		return domain.FileFormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, declared)
	}
	return domain.FileFormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
}

// Parse reads payload in the given format. Malformed rows are skipped and reported, never fatal.
func Parse(payload []byte, format domain.FileFormat, opts ParseOptions) (ParseResult, error) {
	switch format {
	case domain.FileFormatCSV, domain.FileFormatXML, domain.FileFormatXLSX:
	default:
		return ParseResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if len(payload) == 0 {
		return ParseResult{}, nil
	}

	switch format {
	case domain.FileFormatCSV:
		return parseCSV(payload), nil
	case domain.FileFormatXML:
		return parseXML(payload), nil
	default:
		return parseSpreadsheet(payload, opts)
	}
}

func parseCSV(payload []byte) ParseResult {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	var (
		result    ParseResult
		headers   []string
		lastError int
	)
	for {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) || parseErr.StartLine == lastError {
				result.Skipped = append(result.Skipped, RowIssue{Message: err.Error()})
				break
			}
			lastError = parseErr.StartLine
			result.Skipped = append(result.Skipped, RowIssue{
				RowNumber: parseErr.StartLine,
				Message:   parseErr.Err.Error(),
			})
			continue
		}

		line, _ := csvReader.FieldPos(0)
		if headers == nil {
			headers = trimAll(row)
			continue
		}
		record := buildRecord(line, headers, row)
		if record.hasValue() {
			result.Records = append(result.Records, record)
		}
	}
	return result
}

func parseXML(payload []byte) ParseResult {
	decoder := xml.NewDecoder(bytes.NewReader(payload))

	type frame struct {
		name     string
		text     strings.Builder
		children int
	}

	var (
		result  ParseResult
		stack   []*frame
		current *RawRecord
		depth   int // depth of the outermost open record element
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line, _ := decoder.InputPos()
			issue := RowIssue{RowNumber: line, Message: fmt.Sprintf("xml syntax error: %v", err)}
			if current != nil {
				issue.Raw = current.Map()
			}
			result.Skipped = append(result.Skipped, issue)
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if len(stack) > 0 {
				stack[len(stack)-1].children++
			}
			stack = append(stack, &frame{name: t.Name.Local})
			if current == nil && isXMLRecordElement(t.Name.Local) {
				line, _ := decoder.InputPos()
				current = &RawRecord{RowNumber: line}
				depth = len(stack)
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if current == nil {
				continue
			}
			if len(stack)+1 == depth {
				if current.hasValue() {
					result.Records = append(result.Records, *current)
				}
				current = nil
				depth = 0
				continue
			}
			if top.children == 0 && !isXMLRecordElement(top.name) {
				current.Columns = append(current.Columns, Column{
					Name:  top.name,
					Value: strings.TrimSpace(top.text.String()),
				})
			}
		}
	}
	return result
}

func isXMLRecordElement(name string) bool {
	_, ok := xmlRecordElements[strings.ToLower(name)]
	return ok
}

func parseSpreadsheet(payload []byte, opts ParseOptions) (ParseResult, error) {
	limit := opts.MaxSpreadsheetBytes
	if limit <= 0 {
		limit = DefaultMaxSpreadsheetBytes
	}
	if int64(len(payload)) > limit {
		return ParseResult{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(payload), limit)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrUnsupportedFormat, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, nil
	}

	// Raw values keep date cells as serial day numbers instead of locale formatted text.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return ParseResult{}, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrUnsupportedFormat, err)
	}

	var (
		result  ParseResult
		headers []string
	)
	for idx, row := range rows {
		if headers == nil {
			if len(cleanRow(row)) == 0 {
				continue
			}
			headers = trimAll(row)
			continue
		}
		record := buildRecord(idx+1, headers, row)
		if record.hasValue() {
			result.Records = append(result.Records, record)
		}
	}
	return result, nil
}

func buildRecord(rowNumber int, headers []string, row []string) RawRecord {
	record := RawRecord{RowNumber: rowNumber, Columns: make([]Column, 0, len(headers))}
	for i, header := range headers {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		record.Columns = append(record.Columns, Column{Name: header, Value: value})
	}
	return record
}

func cleanRow(row []string) []string {
	cleaned := make([]string, 0, len(row))
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func trimAll(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}

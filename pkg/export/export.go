package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/eventez/analytics/pkg/reports"
)

// Format selects an export renderer.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatDocument Format = "document"
)

// ParseFormat validates a format string. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatJSON, nil
	}
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatDocument:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of a format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatDocument:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension of a format.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatDocument:
		return "txt"
	default:
		return "json"
	}
}

// Render serializes an envelope in the given format.
func Render(f Format, envelope *reports.Envelope) ([]byte, error) {
	if envelope == nil {
		return nil, fmt.Errorf("nil envelope")
	}
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("render json: %w", err)
		}
		return data, nil
	case FormatCSV:
		return renderCSV(envelope)
	case FormatDocument:
		return renderDocument(envelope)
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

// payload flattens the envelope through JSON so every renderer walks the
// same generic shape regardless of which analytics struct produced it.
func payload(envelope *reports.Envelope) (map[string]interface{}, error) {
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal report data: %w", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("report data is not a keyed structure: %w", err)
	}
	return data, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalarString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return false
	}
	return true
}

func renderCSV(envelope *reports.Envelope) ([]byte, error) {
	data, err := payload(envelope)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{
		{"Report Type", string(envelope.Metadata.ReportType)},
		{"Generated At", envelope.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Generated By", envelope.Metadata.GeneratedBy},
		{},
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	if err := writeCSVValue(w, "", data); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSVValue(w *csv.Writer, prefix string, v interface{}) error {
	switch val := v.(type) {
	case map[string]interface{}:
		for _, key := range sortedKeys(val) {
			child := key
			if prefix != "" {
				child = prefix + "." + key
			}
			if err := writeCSVValue(w, child, val[key]); err != nil {
				return err
			}
		}
		return nil
	case []interface{}:
		return writeCSVList(w, prefix, val)
	default:
		return w.Write([]string{prefix, scalarString(v)})
	}
}

// writeCSVList writes a list of keyed rows as a header row plus one row per
// element. Lists of scalars collapse to one joined cell.
func writeCSVList(w *csv.Writer, prefix string, list []interface{}) error {
	if len(list) == 0 {
		return w.Write([]string{prefix, ""})
	}

	first, ok := list[0].(map[string]interface{})
	if !ok {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = scalarString(v)
		}
		return w.Write([]string{prefix, strings.Join(parts, "; ")})
	}

	columns := sortedKeys(first)
	header := append([]string{prefix}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, item := range list {
		row := make([]string, 0, len(columns)+1)
		row = append(row, "")
		m, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("mixed list under %q", prefix)
		}
		for _, col := range columns {
			cell := m[col]
			if !isScalar(cell) {
				// Nested structures inside list rows are re-serialized.
				raw, err := json.Marshal(cell)
				if err != nil {
					return fmt.Errorf("marshal cell %s.%s: %w", prefix, col, err)
				}
				row = append(row, string(raw))
				continue
			}
			row = append(row, scalarString(cell))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// BlockType distinguishes document blocks.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
)

// Block is one element of a rendered document.
type Block struct {
	Type  BlockType
	Level int
	Text  string
}

// DocumentBlocks converts an envelope into heading and paragraph blocks.
func DocumentBlocks(envelope *reports.Envelope) ([]Block, error) {
	data, err := payload(envelope)
	if err != nil {
		return nil, err
	}

	blocks := []Block{
		{Type: BlockHeading, Level: 1, Text: "Analytics Report: " + string(envelope.Metadata.ReportType)},
		{Type: BlockParagraph, Text: "Generated at: " + envelope.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	if envelope.Metadata.GeneratedBy != "" {
		blocks = append(blocks, Block{Type: BlockParagraph, Text: "Generated by: " + envelope.Metadata.GeneratedBy})
	}
	return appendBlocks(blocks, 2, data), nil
}

func appendBlocks(blocks []Block, level int, v interface{}) []Block {
	m, ok := v.(map[string]interface{})
	if !ok {
		return blocks
	}
	for _, key := range sortedKeys(m) {
		switch val := m[key].(type) {
		case map[string]interface{}:
			blocks = append(blocks, Block{Type: BlockHeading, Level: level, Text: titleCase(key)})
			blocks = appendBlocks(blocks, level+1, val)
		case []interface{}:
			blocks = append(blocks, Block{Type: BlockHeading, Level: level, Text: titleCase(key)})
			for _, item := range val {
				if im, ok := item.(map[string]interface{}); ok {
					parts := make([]string, 0, len(im))
					for _, k := range sortedKeys(im) {
						if isScalar(im[k]) {
							parts = append(parts, titleCase(k)+": "+scalarString(im[k]))
						}
					}
					blocks = append(blocks, Block{Type: BlockParagraph, Text: strings.Join(parts, ", ")})
					continue
				}
				blocks = append(blocks, Block{Type: BlockParagraph, Text: scalarString(item)})
			}
		default:
			blocks = append(blocks, Block{Type: BlockParagraph, Text: titleCase(key) + ": " + scalarString(val)})
		}
	}
	return blocks
}

func renderDocument(envelope *reports.Envelope) ([]byte, error) {
	blocks, err := DocumentBlocks(envelope)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, b := range blocks {
		if b.Type == BlockHeading {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(strings.Repeat("#", b.Level))
			buf.WriteByte(' ')
		}
		buf.WriteString(b.Text)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

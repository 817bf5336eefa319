package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventez/analytics/pkg/reports"
)

func testEnvelope() *reports.Envelope {
	return &reports.Envelope{
		Metadata: reports.Metadata{
			GeneratedAt: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
			ReportType:  reports.TypeRevenueSummary,
			GeneratedBy: "user-1",
		},
		Data: map[string]interface{}{
			"total_revenue": 6000.0,
			"payment_count": 3,
			"revenue_by_method": []interface{}{
				map[string]interface{}{"payment_method": "mtn_money", "total": 4000.0},
				map[string]interface{}{"payment_method": "orange_money", "total": 2000.0},
			},
			"period": map[string]interface{}{
				"start_date": "2024-03-01",
				"end_date":   "2024-04-30",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestRenderJSON(t *testing.T) {
	data, err := Render(FormatJSON, testEnvelope())
	require.NoError(t, err)

	var decoded reports.Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, reports.TypeRevenueSummary, decoded.Metadata.ReportType)

	payload, ok := decoded.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 6000.0, payload["total_revenue"])
}

func TestRenderCSVRoundTrip(t *testing.T) {
	data, err := Render(FormatCSV, testEnvelope())
	require.NoError(t, err)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Report Type", "revenue_summary"}, rows[0])
	assert.Equal(t, []string{"Generated At", "2024-06-15 12:00:00"}, rows[1])
	assert.Equal(t, []string{"Generated By", "user-1"}, rows[2])

	// keys traverse in sorted order
	var flat [][]string
	for _, row := range rows[3:] {
		if len(row) > 0 && row[0] != "" || len(row) > 1 {
			flat = append(flat, row)
		}
	}
	assert.Contains(t, flat, []string{"payment_count", "3"})
	assert.Contains(t, flat, []string{"total_revenue", "6000"})
	assert.Contains(t, flat, []string{"period.end_date", "2024-04-30"})
	assert.Contains(t, flat, []string{"period.start_date", "2024-03-01"})

	// a list of keyed rows becomes a header row plus one row per element
	assert.Contains(t, flat, []string{"revenue_by_method", "payment_method", "total"})
	assert.Contains(t, flat, []string{"", "mtn_money", "4000"})
	assert.Contains(t, flat, []string{"", "orange_money", "2000"})
}

func TestRenderCSVScalarList(t *testing.T) {
	envelope := testEnvelope()
	envelope.Data = map[string]interface{}{
		"tags": []interface{}{"a", "b", "c"},
	}

	data, err := Render(FormatCSV, envelope)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tags,a; b; c")
}

func TestRenderCSVRejectsNonKeyedData(t *testing.T) {
	envelope := testEnvelope()
	envelope.Data = []interface{}{"not", "a", "map"}

	_, err := Render(FormatCSV, envelope)
	assert.Error(t, err)
}

func TestDocumentBlocks(t *testing.T) {
	blocks, err := DocumentBlocks(testEnvelope())
	require.NoError(t, err)

	require.NotEmpty(t, blocks)
	assert.Equal(t, BlockHeading, blocks[0].Type)
	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, "Analytics Report: revenue_summary", blocks[0].Text)

	var headings, paragraphs int
	for _, b := range blocks {
		switch b.Type {
		case BlockHeading:
			headings++
		case BlockParagraph:
			paragraphs++
		}
	}
	assert.GreaterOrEqual(t, headings, 3)
	assert.GreaterOrEqual(t, paragraphs, 4)
}

func TestRenderDocument(t *testing.T) {
	data, err := Render(FormatDocument, testEnvelope())
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "# Analytics Report: revenue_summary"))
	assert.Contains(t, text, "## Period")
	assert.Contains(t, text, "Total Revenue: 6000")
	assert.Contains(t, text, "Payment Method: mtn_money, Total: 4000")
}

func TestRenderNilEnvelope(t *testing.T) {
	_, err := Render(FormatJSON, nil)
	assert.Error(t, err)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
	assert.Equal(t, "csv", FormatCSV.Extension())
	assert.Equal(t, "txt", FormatDocument.Extension())
}

func TestArtifactKey(t *testing.T) {
	at := time.Date(2024, 6, 15, 12, 30, 45, 0, time.UTC)
	key := ArtifactKey("rep-1", FormatCSV, at)
	assert.Equal(t, "reports/rep-1/20240615T123045Z.csv", key)
}

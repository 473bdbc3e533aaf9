package export

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC)

func TestFilename(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		keyword string
		want    string
	}{
		{name: "no keyword", source: "duspot", want: "2024-03-07_duspot_data.json"},
		{name: "keyword", source: "duspot", keyword: "staal", want: "2024-03-07_duspot_data_staal.json"},
		{name: "keyword with space", source: "duspot", keyword: "gips plaat", want: "2024-03-07_duspot_data_gips_plaat.json"},
		{name: "keyword with separators", source: "duspot", keyword: "../a\\b", want: "2024-03-07_duspot_data_.._a_b.json"},
		{name: "blank keyword", source: "insert", keyword: "  ", want: "2024-03-07_insert_data.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(day, tt.source, tt.keyword))
		})
	}
}

func TestWriter_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := &Writer{Dir: dir, Now: func() time.Time { return day }}

	records := []json.RawMessage{
		json.RawMessage(`{"id":1,"name":"Staal & beton"}`),
		json.RawMessage(`{"id":2}`),
	}

	path, err := w.Write("duspot", "staal", records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2024-03-07_duspot_data_staal.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": 1,")
	assert.Contains(t, string(data), "Staal & beton", "HTML characters must not be escaped")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")
}

func TestWriter_WriteEmptyAggregate(t *testing.T) {
	w := &Writer{Dir: t.TempDir(), Now: func() time.Time { return day }}

	path, err := w.Write("duspot", "", []json.RawMessage{})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestWriter_EncodeFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Now: func() time.Time { return day }}

	_, err := w.Write("duspot", "", map[string]float64{"bad": math.NaN()})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Now: func() time.Time { return day }}

	_, err := w.Write("insert", "", []int{1, 2, 3})
	require.NoError(t, err)
	path, err := w.Write("insert", "", []int{4})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[4]", string(data))
}

func TestWriter_RequiresSource(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.Write("", "", []int{})
	assert.Error(t, err)
}

func TestRecordCount(t *testing.T) {
	assert.Equal(t, 3, recordCount([]int{1, 2, 3}))
	assert.Equal(t, 0, recordCount([]json.RawMessage{}))
	assert.Equal(t, -1, recordCount(map[string]int{}))
	assert.Equal(t, -1, recordCount(json.RawMessage(`{"id":1}`)))
}

func exportRecordsValue(t *testing.T, source string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, exportRecords.WithLabelValues(source).Write(&m))
	return m.GetGauge().GetValue()
}

func TestWriter_RawDocumentKeepsRecordGauge(t *testing.T) {
	w := &Writer{Dir: t.TempDir(), Now: func() time.Time { return day }}

	_, err := w.Write("export-test", "", []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, exportRecordsValue(t, "export-test"))

	category := json.RawMessage(`{"id":12,"naam":"Bomen","producten":[{"id":1},{"id":2}]}`)
	_, err = w.Write("export-test", "Bomen", category)
	require.NoError(t, err)
	assert.Equal(t, 2.0, exportRecordsValue(t, "export-test"), "a single JSON document must not be counted by bytes")
}

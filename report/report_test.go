package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrancoLiuDev/get-printer-count/collector"
	"github.com/FrancoLiuDev/get-printer-count/ledm"
)

func count(n int64) *int64 { return &n }

func sampleResults() []collector.Result {
	return []collector.Result{
		{
			Host:      "10.0.0.1",
			Model:     "M426fdn",
			Family:    "M225_M425_M426",
			Counters:  ledm.Counters{PrinterTotal: count(1500), CopyTotal: count(42)},
			Status:    collector.StatusOK,
			SourceURL: "http://10.0.0.1/DevMgmt/ProductUsageDyn.xml",
		},
		{
			Host:     "10.0.0.2",
			Model:    "CP1525nw",
			Family:   "CP1525_M251nw_M254dw_M255dw",
			Counters: ledm.Counters{Mono: count(100), Color: count(0)},
			Status:   collector.StatusOK,
		},
		{
			Host:   "10.0.0.3",
			Model:  "M4103fdn",
			Family: "M4103fdn",
			Status: collector.StatusNoDocument,
		},
		{
			Host:          "10.0.0.4",
			Model:         "Quantum, \"Deluxe\"",
			Status:        collector.StatusUnknownModel,
			DetectedModel: "Brother HL-L2350DW",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()[:3]))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "host,model,parser_used,printer_total_impressions,copy_total_impressions,fax_total_impressions,mono_impressions,color_impressions,pcl6_total_impressions,status,detected_model,source_url", lines[0])
	assert.Equal(t, "10.0.0.1,M426fdn,M225_M425_M426,1500,42,,,,,ok,,http://10.0.0.1/DevMgmt/ProductUsageDyn.xml", lines[1])
	assert.Equal(t, "10.0.0.2,CP1525nw,CP1525_M251nw_M254dw_M255dw,,,,100,0,,ok,,", lines[2])
	assert.Equal(t, "10.0.0.3,M4103fdn,M4103fdn,,,,,,,no_document,,", lines[3])
}

func TestCSVRoundTrip(t *testing.T) {
	want := sampleResults()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, want))

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadCSVLegacyColumns(t *testing.T) {
	in := "host,model,parser_used,printer_total_impressions,copy_total_impressions,fax_total_impressions,mono_impressions,color_impressions,pcl6_total_impressions,status\n" +
		"10.0.0.9,M255dw,CP1525_M251nw_M254dw_M255dw,,,,12,3,,ok\n"

	got, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, count(12), got[0].Counters.Mono)
	assert.Equal(t, "", got[0].SourceURL)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("model,status\nx,ok\n"))
	assert.ErrorContains(t, err, `"host"`)

	_, err = ReadCSV(strings.NewReader("host,status,mono_impressions\nh,ok,lots\n"))
	assert.ErrorContains(t, err, "mono_impressions")

	_, err = ReadCSV(strings.NewReader("host,parser_used,status\nh,M9999,ok\n"))
	assert.ErrorContains(t, err, `unknown parser_used "M9999"`)

	got, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "JSON", sampleResults()[:1]))

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "M225_M425_M426", rows[0]["parser_used"])
	assert.Equal(t, float64(1500), rows[0]["printer_total_impressions"])
	v, present := rows[0]["fax_total_impressions"]
	assert.True(t, present)
	assert.Nil(t, v)
	assert.NotContains(t, rows[0], "detected_model")
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "usage.csv")
	require.NoError(t, WriteFile(path, FormatCSV, sampleResults()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadCSV(f)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be gone")

	assert.Error(t, WriteFile(path, "yaml", nil))
	_, err = os.Stat(path)
	assert.NoError(t, err, "failed write keeps previous file")
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	m.Observe(sampleResults())

	assert.Equal(t, float64(1500), testutil.ToFloat64(m.impressions.WithLabelValues("10.0.0.1", "M426fdn", "M225_M425_M426", ledm.CounterPrinterTotal)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.impressions.WithLabelValues("10.0.0.2", "CP1525nw", "CP1525_M251nw_M254dw_M255dw", ledm.CounterColor)))
	// 10.0.0.1 has two counters, 10.0.0.2 two
	assert.Equal(t, 4, testutil.CollectAndCount(m.impressions))
	assert.Equal(t, 4, testutil.CollectAndCount(m.status))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.status.WithLabelValues("10.0.0.3", "no_document")))

	m.Observe(sampleResults()[:1])
	assert.Equal(t, 2, testutil.CollectAndCount(m.impressions))
	assert.Equal(t, 1, testutil.CollectAndCount(m.status))
}

func TestMetricsWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe(sampleResults()[:1])

	path := filepath.Join(t.TempDir(), "textfile", "ledm.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# TYPE ledm_impressions gauge")
	assert.Contains(t, text, `ledm_impressions{counter="copy_total_impressions",family="M225_M425_M426",host="10.0.0.1",model="M426fdn"} 42`)
	assert.Contains(t, text, `ledm_collect_status{host="10.0.0.1",status="ok"} 1`)
}

// Package report writes collection results as CSV, JSON or a Prometheus
// textfile, and reads result CSVs back.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FrancoLiuDev/get-printer-count/collector"
	"github.com/FrancoLiuDev/get-printer-count/ledm"
)

// Output formats accepted by Write.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned for an output format other than csv or json.
var ErrUnknownFormat = errors.New("unknown output format")

// Columns is the CSV header, in order.
var Columns = []string{
	"host",
	"model",
	"parser_used",
	ledm.CounterPrinterTotal,
	ledm.CounterCopyTotal,
	ledm.CounterFaxTotal,
	ledm.CounterMono,
	ledm.CounterColor,
	ledm.CounterPCL6Total,
	"status",
	"detected_model",
	"source_url",
}

// WriteCSV writes the header and one row per result. Absent counters are
// empty cells.
func WriteCSV(w io.Writer, results []collector.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		if err := writer.Write(csvRecord(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRecord(r collector.Result) []string {
	record := make([]string, 0, len(Columns))
	record = append(record, r.Host, r.Model, r.Family)
	for _, name := range ledm.CounterNames {
		record = append(record, formatCount(r.Counters.Get(name)))
	}
	return append(record, string(r.Status), r.DetectedModel, r.SourceURL)
}

func formatCount(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// ReadCSV parses a file produced by WriteCSV. Columns are matched by header
// name so files without the trailing detected_model/source_url columns are
// accepted.
func ReadCSV(r io.Reader) ([]collector.Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"host", "status"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("read header: missing %q column", required)
		}
	}

	var results []collector.Result
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		get := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}

		if fam := get("parser_used"); fam != "" && ledm.FamilyByName(fam) == ledm.FamilyNone {
			return nil, fmt.Errorf("read row %d: unknown parser_used %q", line, fam)
		}
		res := collector.Result{
			Host:          get("host"),
			Model:         get("model"),
			Family:        get("parser_used"),
			Status:        collector.Status(get("status")),
			DetectedModel: get("detected_model"),
			SourceURL:     get("source_url"),
		}
		for _, name := range ledm.CounterNames {
			v, err := parseCount(get(name))
			if err != nil {
				return nil, fmt.Errorf("read row %d: %s: %w", line, name, err)
			}
			res.Counters.Set(name, v)
		}
		results = append(results, res)
	}
	return results, nil
}

func parseCount(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// jsonResult fixes the JSON field order to the CSV column order.
type jsonResult struct {
	Host          string `json:"host"`
	Model         string `json:"model"`
	ParserUsed    string `json:"parser_used"`
	PrinterTotal  *int64 `json:"printer_total_impressions"`
	CopyTotal     *int64 `json:"copy_total_impressions"`
	FaxTotal      *int64 `json:"fax_total_impressions"`
	Mono          *int64 `json:"mono_impressions"`
	Color         *int64 `json:"color_impressions"`
	PCL6Total     *int64 `json:"pcl6_total_impressions"`
	Status        string `json:"status"`
	DetectedModel string `json:"detected_model,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
}

// WriteJSON writes results as an indented JSON array; absent counters are null.
func WriteJSON(w io.Writer, results []collector.Result) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		out = append(out, jsonResult{
			Host:          r.Host,
			Model:         r.Model,
			ParserUsed:    r.Family,
			PrinterTotal:  r.Counters.PrinterTotal,
			CopyTotal:     r.Counters.CopyTotal,
			FaxTotal:      r.Counters.FaxTotal,
			Mono:          r.Counters.Mono,
			Color:         r.Counters.Color,
			PCL6Total:     r.Counters.PCL6Total,
			Status:        string(r.Status),
			DetectedModel: r.DetectedModel,
			SourceURL:     r.SourceURL,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Write encodes results in format to w.
func Write(w io.Writer, format string, results []collector.Result) error {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return WriteCSV(w, results)
	case FormatJSON:
		return WriteJSON(w, results)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile writes results to path through a temp file and rename. A failed
// write leaves any existing file untouched.
func WriteFile(path, format string, results []collector.Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, format, results); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

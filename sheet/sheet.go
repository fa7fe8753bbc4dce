// Package sheet loads the printer list from an .xlsx workbook or a .csv file.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"github.com/FrancoLiuDev/get-printer-count/scanner"
)

// ErrMissingColumns is wrapped by ConfigError when the header lacks a
// required column.
var ErrMissingColumns = errors.New("missing required columns")

// ErrUnsupportedFormat is returned for input files that are neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// Header candidates, in preference order.
var (
	AddressColumns  = []string{"ip", "IP", "Ip", "host", "Host"}
	ModelColumns    = []string{"model", "Model", "型號", "機型"}
	UsernameColumns = []string{"username", "Username", "user", "User"}
	PasswordColumns = []string{"password", "Password", "pass", "Pass"}
)

// ConfigError reports an input file that cannot drive a run at all.
type ConfigError struct {
	Path    string
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	where := e.Path
	if where == "" {
		where = "input"
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %v: %s", where, e.Err, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DeviceRecord is one printer to query.
type DeviceRecord struct {
	Address     string
	Model       string
	Credentials *scanner.Credentials
}

// Columns maps the detected header positions; -1 means absent.
type Columns struct {
	Address  int
	Model    int
	Username int
	Password int
}

// Load reads path, choosing the reader by extension.
func Load(path string) ([]DeviceRecord, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = ReadXLSX(path)
	case ".csv":
		rows, err = ReadCSVFile(path)
	default:
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	if err != nil {
		return nil, err
	}

	records, err := ParseRows(rows)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Path = path
		}
		return nil, err
	}
	return records, nil
}

// ReadXLSX returns the rows of the first sheet in the workbook.
func ReadXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ConfigError{Path: path, Err: errors.New("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// ReadCSVFile reads a CSV file with ReadCSV.
func ReadCSVFile(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return ReadCSV(bytes.NewReader(data))
}

// ReadCSV reads every record from r. A UTF-8 BOM is dropped; input that is
// not valid UTF-8 is decoded as Big5, the usual export of Traditional Chinese
// spreadsheets.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		src = transform.NewReader(src, traditionalchinese.Big5.NewDecoder())
	}

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// DetectColumns locates the columns in header. An exact candidate match wins;
// otherwise the first case-insensitive match is used. Missing address or
// model columns yield a ConfigError wrapping ErrMissingColumns.
func DetectColumns(header []string) (Columns, error) {
	cols := Columns{
		Address:  findColumn(header, AddressColumns),
		Model:    findColumn(header, ModelColumns),
		Username: findColumn(header, UsernameColumns),
		Password: findColumn(header, PasswordColumns),
	}

	var missing []string
	if cols.Address < 0 {
		missing = append(missing, "address column (ip/IP/host)")
	}
	if cols.Model < 0 {
		missing = append(missing, "model column (model/型號/機型)")
	}
	if len(missing) > 0 {
		return cols, &ConfigError{Missing: missing, Err: ErrMissingColumns}
	}
	return cols, nil
}

func findColumn(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, h := range header {
			if strings.TrimSpace(h) == want {
				return i
			}
		}
	}
	for _, want := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

// ParseRows turns a header row plus data rows into device records, in order.
// Fully blank rows are skipped. Credentials are attached only when both the
// username and password cells are non-empty.
func ParseRows(rows [][]string) ([]DeviceRecord, error) {
	if len(rows) == 0 {
		return nil, &ConfigError{Missing: []string{"header row"}, Err: ErrMissingColumns}
	}
	cols, err := DetectColumns(stripHeaderBOM(rows[0]))
	if err != nil {
		return nil, err
	}

	records := make([]DeviceRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := DeviceRecord{
			Address: cell(row, cols.Address),
			Model:   cell(row, cols.Model),
		}
		if cols.Username >= 0 && cols.Password >= 0 {
			user, pass := cell(row, cols.Username), cell(row, cols.Password)
			if user != "" && pass != "" {
				rec.Credentials = &scanner.Credentials{Username: user, Password: pass}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func stripHeaderBOM(header []string) []string {
	if len(header) == 0 {
		return header
	}
	out := append([]string(nil), header...)
	out[0] = strings.TrimPrefix(out[0], "\ufeff")
	return out
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

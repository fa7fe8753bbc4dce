package ledm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNoFamily is returned when extraction is asked of FamilyNone.
var ErrNoFamily = errors.New("ledm: no extraction rule for model")

// Counter names as written to the result columns.
const (
	CounterPrinterTotal = "printer_total_impressions"
	CounterCopyTotal    = "copy_total_impressions"
	CounterFaxTotal     = "fax_total_impressions"
	CounterMono         = "mono_impressions"
	CounterColor        = "color_impressions"
	CounterPCL6Total    = "pcl6_total_impressions"
)

// CounterNames lists every counter in column order.
var CounterNames = []string{
	CounterPrinterTotal,
	CounterCopyTotal,
	CounterFaxTotal,
	CounterMono,
	CounterColor,
	CounterPCL6Total,
}

// Counters is the union of every family's counters. A nil field is either not
// read by the family or missing/non-numeric in the document.
type Counters struct {
	PrinterTotal *int64
	CopyTotal    *int64
	FaxTotal     *int64
	Mono         *int64
	Color        *int64
	PCL6Total    *int64
}

// Get returns the counter stored under a CounterNames entry.
func (c Counters) Get(name string) *int64 {
	switch name {
	case CounterPrinterTotal:
		return c.PrinterTotal
	case CounterCopyTotal:
		return c.CopyTotal
	case CounterFaxTotal:
		return c.FaxTotal
	case CounterMono:
		return c.Mono
	case CounterColor:
		return c.Color
	case CounterPCL6Total:
		return c.PCL6Total
	}
	return nil
}

// Set stores v under a CounterNames entry. Unknown names are ignored.
func (c *Counters) Set(name string, v *int64) {
	switch name {
	case CounterPrinterTotal:
		c.PrinterTotal = v
	case CounterCopyTotal:
		c.CopyTotal = v
	case CounterFaxTotal:
		c.FaxTotal = v
	case CounterMono:
		c.Mono = v
	case CounterColor:
		c.Color = v
	case CounterPCL6Total:
		c.PCL6Total = v
	}
}

// Empty reports whether no counter is set.
func (c Counters) Empty() bool {
	for _, name := range CounterNames {
		if c.Get(name) != nil {
			return false
		}
	}
	return true
}

// Extract parses body and reads the family's counters from it. The only
// error is a document that fails to parse (ErrParse) or FamilyNone.
func (f Family) Extract(body []byte) (Counters, error) {
	if f == FamilyNone {
		return Counters{}, ErrNoFamily
	}
	doc, err := parseDocument(body)
	if err != nil {
		return Counters{}, err
	}
	return f.extractDocument(doc)
}

// extractDocument reads the family's counters from an already parsed document.
func (f Family) extractDocument(doc *Document) (Counters, error) {
	switch f {
	case FamilyThreeTotal:
		return Counters{
			PrinterTotal: doc.Printer.total(),
			CopyTotal:    doc.Copy.total(),
			FaxTotal:     doc.Fax.total(),
		}, nil
	case FamilyMonoColor:
		return Counters{
			Mono:  doc.Printer.mono(),
			Color: doc.Printer.color(),
		}, nil
	case FamilyPCL6Total:
		// Devices in this family report the PCL6 figure in the subunit-level
		// TotalImpressions; the nested PCL6Impressions/TotalImpressions is not used.
		return Counters{
			PCL6Total: doc.Printer.total(),
		}, nil
	case FamilyNone:
		return Counters{}, ErrNoFamily
	}
	return Counters{}, fmt.Errorf("ledm: unhandled family %d", int(f))
}

func (s *Subunit) total() *int64 {
	if s == nil {
		return nil
	}
	return parseCount(s.TotalImpressions)
}

func (s *Subunit) mono() *int64 {
	if s == nil {
		return nil
	}
	return parseCount(s.MonochromeImpressions)
}

func (s *Subunit) color() *int64 {
	if s == nil {
		return nil
	}
	return parseCount(s.ColorImpressions)
}

// parseCount trims the text, parses it as a float and truncates toward zero,
// so "123.9" is 123. Missing, non-numeric, non-finite, negative and
// out-of-range values are nil.
func parseCount(text *string) *int64 {
	if text == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	f = math.Trunc(f)
	if f < 0 || f >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

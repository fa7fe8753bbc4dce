// Package collector runs resolve, probe and extract for every device and
// produces one result per device in input order.
package collector

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/FrancoLiuDev/get-printer-count/ledm"
	"github.com/FrancoLiuDev/get-printer-count/scanner"
	"github.com/FrancoLiuDev/get-printer-count/sheet"
)

// Status is the outcome of one device.
type Status string

const (
	StatusOK           Status = "ok"
	StatusUnknownModel Status = "unknown_model"
	StatusNoDocument   Status = "no_document"
	StatusParseError   Status = "parse_error"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusOK, StatusUnknownModel, StatusNoDocument, StatusParseError}

// Result is the outcome for one device. Results are built once by the
// collector and treated as values afterwards.
type Result struct {
	Host          string
	Model         string
	Family        string // family name, empty when no rule matched
	Counters      ledm.Counters
	Status        Status
	DetectedModel string
	SourceURL     string
}

// Prober finds the ProductUsageDyn document on a device.
type Prober interface {
	Probe(ctx context.Context, address string, creds *scanner.Credentials) (*scanner.Document, bool)
}

// ModelDetector asks a device for its model when the declared one is no use.
type ModelDetector interface {
	DetectModels(ctx context.Context, address string) ([]string, error)
}

// Logger is the logging surface the collector needs.
type Logger interface {
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

// Options tune a Collector. The zero value runs sequentially without model
// detection or logging.
type Options struct {
	Concurrency int
	Detector    ModelDetector
	Logger      Logger
}

// Collector drives a run over a device list.
type Collector struct {
	prober      Prober
	detector    ModelDetector
	concurrency int
	log         Logger
}

// New returns a Collector using prober for endpoint discovery.
func New(prober Prober, opts Options) *Collector {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Collector{
		prober:      prober,
		detector:    opts.Detector,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// Run collects every record and returns results in input order. A device
// failure is recorded in its result and never stops the run; only context
// cancellation does, in which case no results are returned.
func (c *Collector) Run(ctx context.Context, records []sheet.DeviceRecord) ([]Result, error) {
	results := make([]Result, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.Collect(gctx, rec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.log != nil {
		sum := Summarize(results)
		c.log.Info("collection finished",
			"devices", len(results),
			"ok", sum[StatusOK],
			"unknown_model", sum[StatusUnknownModel],
			"no_document", sum[StatusNoDocument],
			"parse_error", sum[StatusParseError])
	}
	return results, nil
}

// Collect processes a single device.
func (c *Collector) Collect(ctx context.Context, rec sheet.DeviceRecord) Result {
	family := ledm.Resolve(rec.Model)
	var detected string
	if family == ledm.FamilyNone && c.detector != nil && rec.Address != "" {
		family, detected = c.detect(ctx, rec.Address)
	}

	if family == ledm.FamilyNone {
		c.debug("unknown model", "host", rec.Address, "model", rec.Model, "detected", detected)
		return newResult(rec, family, StatusUnknownModel, ledm.Counters{}, detected, "")
	}

	doc, ok := c.prober.Probe(ctx, rec.Address, rec.Credentials)
	if !ok {
		c.debug("no document", "host", rec.Address, "family", family.Name())
		return newResult(rec, family, StatusNoDocument, ledm.Counters{}, detected, "")
	}

	counters, err := family.Extract(doc.Body)
	if err != nil {
		c.warn("parse failed", "host", rec.Address, "url", doc.URL, "error", err)
		return newResult(rec, family, StatusParseError, ledm.Counters{}, detected, doc.URL)
	}

	c.debug("collected", "host", rec.Address, "family", family.Name(), "url", doc.URL)
	return newResult(rec, family, StatusOK, counters, detected, doc.URL)
}

// detect returns the first detected model that resolves to a family. With no
// resolvable answer it still reports what the device said first.
func (c *Collector) detect(ctx context.Context, address string) (ledm.Family, string) {
	models, err := c.detector.DetectModels(ctx, address)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.debug("model detection failed", "host", address, "error", err)
		}
		return ledm.FamilyNone, ""
	}
	for _, m := range models {
		if f := ledm.Resolve(m); f != ledm.FamilyNone {
			return f, m
		}
	}
	if len(models) > 0 {
		return ledm.FamilyNone, models[0]
	}
	return ledm.FamilyNone, ""
}

func newResult(rec sheet.DeviceRecord, family ledm.Family, status Status, counters ledm.Counters, detected, url string) Result {
	return Result{
		Host:          rec.Address,
		Model:         rec.Model,
		Family:        family.Name(),
		Counters:      counters,
		Status:        status,
		DetectedModel: detected,
		SourceURL:     url,
	}
}

// Summary counts results per status.
type Summary map[Status]int

// Summarize counts results by status.
func Summarize(results []Result) Summary {
	sum := make(Summary, len(Statuses))
	for _, s := range Statuses {
		sum[s] = 0
	}
	for _, r := range results {
		sum[r.Status]++
	}
	return sum
}

func (c *Collector) debug(msg string, context ...interface{}) {
	if c.log != nil {
		c.log.Debug(msg, context...)
	}
}

func (c *Collector) warn(msg string, context ...interface{}) {
	if c.log != nil {
		c.log.Warn(msg, context...)
	}
}

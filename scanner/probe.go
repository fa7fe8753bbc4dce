package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FrancoLiuDev/get-printer-count/ledm"
)

// DefaultCandidatePaths are the known EWS mount points for ProductUsageDyn, in
// the order they are tried.
var DefaultCandidatePaths = []string{
	"/DevMgmt/ProductUsageDyn.xml",
	"/hp/device/ProductUsageDyn.xml",
	"/hp/device/this.Device/ProductUsageDyn.xml",
	"/ProductUsageDyn.xml",
}

// DefaultSchemes are tried in order; every path is tried under the first
// scheme before moving to the next.
var DefaultSchemes = []string{"http", "https"}

const (
	defaultUserAgent    = "go-http/LEDM-scraper"
	defaultAccept       = "application/xml,text/xml;q=0.9,*/*;q=0.8"
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 5
	maxBodyBytes        = 4 << 20
	previewBytes        = 200
)

// Credentials are optional HTTP basic-auth credentials for one device.
type Credentials struct {
	Username string
	Password string
}

// ClientConfig is the HTTP policy shared by every probe. It is copied into the
// Prober at construction and never changed afterwards.
type ClientConfig struct {
	Timeout            time.Duration
	MaxRedirects       int // 0 follows none; negative means the default
	InsecureSkipVerify bool
	UserAgent          string
	Schemes            []string
	CandidatePaths     []string
	// Transport overrides the network layer, mainly for tests.
	Transport http.RoundTripper
}

// DefaultClientConfig returns the policy used against printers: 10s timeout,
// five redirects, certificate checks off since EWS certificates are self-signed.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:            defaultTimeout,
		MaxRedirects:       defaultMaxRedirects,
		InsecureSkipVerify: true,
		UserAgent:          defaultUserAgent,
		Schemes:            append([]string(nil), DefaultSchemes...),
		CandidatePaths:     append([]string(nil), DefaultCandidatePaths...),
	}
}

// Logger is the logging surface the scanner needs.
type Logger interface {
	Warn(msg string, context ...interface{})
	Info(msg string, context ...interface{})
	Debug(msg string, context ...interface{})
}

// Document is an accepted ProductUsageDyn payload and where it came from.
type Document struct {
	URL  string
	Body []byte
}

// Prober locates the ProductUsageDyn document on a device.
type Prober struct {
	cfg    ClientConfig
	client *http.Client
	log    Logger
}

// NewProber builds a Prober from cfg. Zero durations, strings and lists and a
// negative MaxRedirects fall back to the defaults; a MaxRedirects of 0 and
// InsecureSkipVerify are taken as given. log may be nil.
func NewProber(cfg ClientConfig, log Logger) *Prober {
	def := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = def.MaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = def.Schemes
	}
	if len(cfg.CandidatePaths) == 0 {
		cfg.CandidatePaths = def.CandidatePaths
	}
	cfg.Schemes = append([]string(nil), cfg.Schemes...)
	cfg.CandidatePaths = append([]string(nil), cfg.CandidatePaths...)

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, // printers often have self-signed certs
			},
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: cfg.Timeout,
		}
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Prober{cfg: cfg, client: client, log: log}
}

// Config returns a copy of the prober's client policy.
func (p *Prober) Config() ClientConfig {
	cfg := p.cfg
	cfg.Schemes = append([]string(nil), p.cfg.Schemes...)
	cfg.CandidatePaths = append([]string(nil), p.cfg.CandidatePaths...)
	return cfg
}

// Probe tries the configured candidate paths on address.
func (p *Prober) Probe(ctx context.Context, address string, creds *Credentials) (*Document, bool) {
	return p.ProbePaths(ctx, address, creds, nil)
}

// ProbePaths tries every scheme × path candidate in order and returns the
// first one that answers 200 with a non-empty ProductUsageDyn body. Network
// errors move on to the next candidate. paths overrides the configured list
// when non-empty. Returns false when nothing qualified or ctx was cancelled.
func (p *Prober) ProbePaths(ctx context.Context, address string, creds *Credentials, paths []string) (*Document, bool) {
	if len(paths) == 0 {
		paths = p.cfg.CandidatePaths
	}

	for _, scheme := range p.cfg.Schemes {
		base := strings.TrimRight(fmt.Sprintf("%s://%s", scheme, address), "/")
		for _, path := range paths {
			if ctx.Err() != nil {
				return nil, false
			}
			url := base + "/" + strings.TrimLeft(path, "/")
			body, ok := p.try(ctx, url, creds)
			if ok {
				return &Document{URL: url, Body: body}, true
			}
		}
	}
	return nil, false
}

func (p *Prober) try(ctx context.Context, url string, creds *Credentials) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		p.debug("request build failed", "url", url, "error", err)
		return nil, false
	}
	req.Header.Set("Accept", defaultAccept)
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.debug("request error", "url", url, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	p.debug("response", "status", resp.StatusCode, "content_type", resp.Header.Get("Content-Type"), "url", url)

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.debug("body read failed", "url", url, "error", err)
		return nil, false
	}
	if len(body) == 0 {
		return nil, false
	}
	if !ledm.IsProductUsageDyn(body) {
		p.debug("not ProductUsageDyn", "url", url, "preview", fmt.Sprintf("%q", body[:min(len(body), previewBytes)]))
		return nil, false
	}
	return body, true
}

func (p *Prober) debug(msg string, context ...interface{}) {
	if p.log != nil {
		p.log.Debug("probe: "+msg, context...)
	}
}

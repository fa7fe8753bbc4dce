package scanner

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/FrancoLiuDev/get-printer-count/common/snmp/oids"
)

// SNMPConfig holds the v1/v2c settings used for model lookups.
type SNMPConfig struct {
	Community string
	Version   string // "1" or "2c"
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// DefaultSNMPConfig returns public/v2c with a 2s timeout and one retry.
func DefaultSNMPConfig() SNMPConfig {
	return SNMPConfig{
		Community: "public",
		Version:   "2c",
		Port:      161,
		Timeout:   2 * time.Second,
		Retries:   1,
	}
}

// SNMPClient abstracts gosnmp for easier testing.
type SNMPClient interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

// NewSNMPClient is the factory used by ModelDetector; tests replace it to
// inject fake clients.
var NewSNMPClient = func(cfg SNMPConfig, target string) (SNMPClient, error) {
	version := gosnmp.Version2c
	if cfg.Version == "1" {
		version = gosnmp.Version1
	}
	port := cfg.Port
	if port == 0 {
		port = 161
	}
	snmp := &gosnmp.GoSNMP{
		Target:    target,
		Port:      port,
		Community: cfg.Community,
		Version:   version,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
	}
	if err := snmp.Connect(); err != nil {
		return nil, err
	}
	return &gosnmpWrapper{snmp: snmp}, nil
}

type gosnmpWrapper struct {
	snmp *gosnmp.GoSNMP
}

func (w *gosnmpWrapper) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	return w.snmp.Get(oids)
}

func (w *gosnmpWrapper) Close() error {
	if w.snmp != nil && w.snmp.Conn != nil {
		return w.snmp.Conn.Close()
	}
	return nil
}

// ModelDetector asks a device for its model over SNMP.
type ModelDetector struct {
	cfg SNMPConfig
	log Logger
}

// NewModelDetector returns a detector using cfg. log may be nil.
func NewModelDetector(cfg SNMPConfig, log Logger) *ModelDetector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSNMPConfig().Timeout
	}
	if cfg.Community == "" {
		cfg.Community = "public"
	}
	return &ModelDetector{cfg: cfg, log: log}
}

// DetectModels returns the non-empty model candidates the device reports,
// best first: the IEEE-1284 MDL field, hrDeviceDescr, then sysDescr.
func (d *ModelDetector) DetectModels(ctx context.Context, address string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := NewSNMPClient(d.cfg, snmpHost(address))
	if err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", address, err)
	}
	defer client.Close()

	packet, err := client.Get(oids.ModelLookup())
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", address, err)
	}
	if packet == nil {
		return nil, fmt.Errorf("snmp get %s: empty response", address)
	}

	values := make(map[string]string, len(packet.Variables))
	for _, pdu := range packet.Variables {
		if s := pduString(pdu); s != "" {
			values[strings.TrimPrefix(pdu.Name, ".")] = s
		}
	}

	var models []string
	seen := make(map[string]bool)
	add := func(m string) {
		if m != "" && !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	for _, oid := range oids.DeviceIDs {
		add(ieee1284Model(values[oid]))
	}
	for _, oid := range oids.Descriptions {
		add(values[oid])
	}

	if d.log != nil {
		d.log.Debug("snmp: model candidates", "host", address, "count", len(models))
	}
	return models, nil
}

// snmpHost drops any :port from an EWS address; SNMP always uses its own port.
func snmpHost(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return strings.Trim(address, "[]")
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return ""
	}
	switch v := pdu.Value.(type) {
	case []byte:
		return strings.TrimSpace(strings.Trim(string(v), "\x00"))
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// ieee1284Model extracts the MDL (or MODEL) field of an IEEE-1284 device ID.
func ieee1284Model(deviceID string) string {
	for _, pair := range strings.Split(deviceID, ";") {
		key, value, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "MDL", "MODEL":
			return strings.TrimSpace(value)
		}
	}
	return ""
}

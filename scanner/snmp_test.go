package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FrancoLiuDev/get-printer-count/common/snmp/oids"
)

type fakeSNMP struct {
	vars   []gosnmp.SnmpPDU
	err    error
	asked  []string
	closed bool
}

func (f *fakeSNMP) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	f.asked = append(f.asked, oids...)
	if f.err != nil {
		return nil, f.err
	}
	return &gosnmp.SnmpPacket{Variables: f.vars}, nil
}

func (f *fakeSNMP) Close() error {
	f.closed = true
	return nil
}

func withFakeSNMP(t *testing.T, fake *fakeSNMP, targets *[]string) {
	t.Helper()
	orig := NewSNMPClient
	NewSNMPClient = func(cfg SNMPConfig, target string) (SNMPClient, error) {
		if targets != nil {
			*targets = append(*targets, target)
		}
		return fake, nil
	}
	t.Cleanup(func() { NewSNMPClient = orig })
}

func TestDetectModelsOrder(t *testing.T) {
	fake := &fakeSNMP{vars: []gosnmp.SnmpPDU{
		{Name: "." + oids.SysDescr, Type: gosnmp.OctetString, Value: []byte("HP ETHERNET MULTI-ENVIRONMENT")},
		{Name: "." + oids.HPDeviceID, Type: gosnmp.OctetString, Value: []byte("MFG:HP;MDL:HP LaserJet Pro MFP M426fdn;CMD:PJL,PCL,PCLXL;")},
		{Name: "." + oids.HrDeviceDescr, Type: gosnmp.OctetString, Value: []byte("HP LaserJet MFP M426fdn\x00")},
	}}
	var targets []string
	withFakeSNMP(t, fake, &targets)

	d := NewModelDetector(DefaultSNMPConfig(), nil)
	models, err := d.DetectModels(context.Background(), "10.1.1.1:8080")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"HP LaserJet Pro MFP M426fdn",
		"HP LaserJet MFP M426fdn",
		"HP ETHERNET MULTI-ENVIRONMENT",
	}, models)
	assert.Equal(t, []string{"10.1.1.1"}, targets)
	assert.Equal(t, oids.ModelLookup(), fake.asked)
	assert.True(t, fake.closed)
}

func TestDetectModelsSkipsMissingObjects(t *testing.T) {
	fake := &fakeSNMP{vars: []gosnmp.SnmpPDU{
		{Name: "." + oids.HPDeviceID, Type: gosnmp.NoSuchObject},
		{Name: "." + oids.HrDeviceDescr, Type: gosnmp.NoSuchInstance},
		{Name: "." + oids.SysDescr, Type: gosnmp.OctetString, Value: []byte("  HP Color LaserJet M255dw  ")},
	}}
	withFakeSNMP(t, fake, nil)

	models, err := NewModelDetector(SNMPConfig{}, nil).DetectModels(context.Background(), "printer")
	require.NoError(t, err)
	assert.Equal(t, []string{"HP Color LaserJet M255dw"}, models)
}

func TestDetectModelsPortMonitorDeduplicated(t *testing.T) {
	fake := &fakeSNMP{vars: []gosnmp.SnmpPDU{
		{Name: "." + oids.HPDeviceID, Type: gosnmp.NoSuchObject},
		{Name: "." + oids.PpmPrinterIEEE1284DeviceID1, Type: gosnmp.OctetString, Value: []byte("MFG:HP;MDL:HP LaserJet 4103fdn;")},
		{Name: "." + oids.HrDeviceDescr, Type: gosnmp.OctetString, Value: []byte("HP LaserJet 4103fdn")},
	}}
	withFakeSNMP(t, fake, nil)

	models, err := NewModelDetector(DefaultSNMPConfig(), nil).DetectModels(context.Background(), "10.1.1.4")
	require.NoError(t, err)
	assert.Equal(t, []string{"HP LaserJet 4103fdn"}, models)
}

func TestDetectModelsError(t *testing.T) {
	fake := &fakeSNMP{err: errors.New("request timeout")}
	withFakeSNMP(t, fake, nil)

	_, err := NewModelDetector(DefaultSNMPConfig(), nil).DetectModels(context.Background(), "10.1.1.2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timeout")
	assert.True(t, fake.closed)
}

func TestDetectModelsCancelled(t *testing.T) {
	called := false
	orig := NewSNMPClient
	NewSNMPClient = func(SNMPConfig, string) (SNMPClient, error) {
		called = true
		return &fakeSNMP{}, nil
	}
	t.Cleanup(func() { NewSNMPClient = orig })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewModelDetector(DefaultSNMPConfig(), nil).DetectModels(ctx, "10.1.1.3")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestIEEE1284Model(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MFG:HP;MDL:HP LaserJet 4103fdn;CLS:PRINTER;", "HP LaserJet 4103fdn"},
		{"MANUFACTURER:HP;MODEL:Color LaserJet CP1525nw;", "Color LaserJet CP1525nw"},
		{"mfg:hp; mdl : M225dw ;", "M225dw"},
		{"MFG:HP;CMD:PCL;", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ieee1284Model(tt.in))
		})
	}
}

func TestSNMPHost(t *testing.T) {
	assert.Equal(t, "10.0.0.1", snmpHost("10.0.0.1"))
	assert.Equal(t, "10.0.0.1", snmpHost("10.0.0.1:443"))
	assert.Equal(t, "fe80::1", snmpHost("[fe80::1]:80"))
	assert.Equal(t, "printer.local", snmpHost("printer.local"))
}

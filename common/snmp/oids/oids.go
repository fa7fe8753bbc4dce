// Package oids names the SNMP objects read when identifying a printer model.
package oids

const (
	// SysDescr is SNMPv2-MIB::sysDescr.0, a free-form system description.
	SysDescr = "1.3.6.1.2.1.1.1.0"
	// HrDeviceDescr is HOST-RESOURCES-MIB::hrDeviceDescr.1
	HrDeviceDescr = "1.3.6.1.2.1.25.3.2.1.3.1"
)

const (
	// HPDeviceID is HP's enterprise copy of the IEEE-1284 device ID
	// ("MFG:HP;MDL:...;CMD:...;").
	HPDeviceID = "1.3.6.1.4.1.11.2.3.9.1.1.7.0"

	// PpmPrinterIEEE1284DeviceID is the PWG Port Monitor column carrying the
	// same string. PpmPrinterIEEE1284DeviceID1 is its first-printer instance.
	PpmPrinterIEEE1284DeviceID  = "1.3.6.1.4.1.2699.1.2.1.2.1.3"
	PpmPrinterIEEE1284DeviceID1 = PpmPrinterIEEE1284DeviceID + ".1"
)

// DeviceIDs lists the IEEE-1284 sources in preference order.
var DeviceIDs = []string{HPDeviceID, PpmPrinterIEEE1284DeviceID1}

// Descriptions lists the free-text model sources in preference order.
var Descriptions = []string{HrDeviceDescr, SysDescr}

// ModelLookup is every OID fetched in a single model detection GET.
func ModelLookup() []string {
	out := make([]string, 0, len(DeviceIDs)+len(Descriptions))
	out = append(out, DeviceIDs...)
	return append(out, Descriptions...)
}

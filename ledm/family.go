package ledm

import "strings"

// Family identifies one ProductUsageDyn layout and therefore one extraction rule.
// The set is closed; Extract switches over every member.
type Family int

const (
	// FamilyNone means the model string did not resolve.
	FamilyNone Family = iota
	// FamilyThreeTotal covers the M225/M425/M426 MFPs: printer, copy and fax totals.
	FamilyThreeTotal
	// FamilyMonoColor covers the CP1525/M251/M254/M255 colour line.
	FamilyMonoColor
	// FamilyPCL6Total covers the LaserJet Pro 4103fdn.
	FamilyPCL6Total
)

// Family names are written to the parser_used column and must not change.
const (
	NameThreeTotal = "M225_M425_M426"
	NameMonoColor  = "CP1525_M251nw_M254dw_M255dw"
	NamePCL6Total  = "M4103fdn"
)

// Name returns the family name recorded in results, or "" for FamilyNone.
func (f Family) Name() string {
	switch f {
	case FamilyThreeTotal:
		return NameThreeTotal
	case FamilyMonoColor:
		return NameMonoColor
	case FamilyPCL6Total:
		return NamePCL6Total
	default:
		return ""
	}
}

func (f Family) String() string {
	if name := f.Name(); name != "" {
		return name
	}
	return "none"
}

// FamilyByName maps a recorded family name back to its Family. The empty
// name and unknown names give FamilyNone.
func FamilyByName(name string) Family {
	for _, f := range []Family{FamilyThreeTotal, FamilyMonoColor, FamilyPCL6Total} {
		if f.Name() == name {
			return f
		}
	}
	return FamilyNone
}

type modelKey struct {
	key    string
	family Family
}

// modelKeys is scanned in order for the substring fallback, so the first key
// contained in a normalized model string wins. Keys of one family are grouped,
// and the families keep the order the device survey listed them in.
var modelKeys = []modelKey{
	{"m225", FamilyThreeTotal},
	{"m225dw", FamilyThreeTotal},
	{"m425", FamilyThreeTotal},
	{"m425dn", FamilyThreeTotal},
	{"m426", FamilyThreeTotal},
	{"m426fdn", FamilyThreeTotal},

	{"cp1525", FamilyMonoColor},
	{"cp1525nw", FamilyMonoColor},
	{"m251nw", FamilyMonoColor},
	{"m254dw", FamilyMonoColor},
	{"m255dw", FamilyMonoColor},

	{"4103fdn", FamilyPCL6Total},
	{"m4103fdn", FamilyPCL6Total},
	{"laserjetpro4103fdn", FamilyPCL6Total},
}

var exactKeys = func() map[string]Family {
	m := make(map[string]Family, len(modelKeys))
	for _, k := range modelKeys {
		m[k.key] = k.family
	}
	return m
}()

// NormalizeModel lower-cases s and keeps only ASCII letters and digits.
func NormalizeModel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Resolve maps a free-text model string to its family. An exact key match is
// tried first, then the ordered substring scan over modelKeys.
func Resolve(model string) Family {
	norm := NormalizeModel(model)
	if norm == "" {
		return FamilyNone
	}
	if f, ok := exactKeys[norm]; ok {
		return f
	}
	for _, k := range modelKeys {
		if strings.Contains(norm, k.key) {
			return k.family
		}
	}
	return FamilyNone
}

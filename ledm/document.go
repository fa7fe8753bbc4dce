package ledm

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// LEDM namespaces used by ProductUsageDyn.
const (
	NamespaceDictionaries    = "http://www.hp.com/schemas/imaging/con/dictionaries/1.0/"
	NamespaceProductUsageDyn = "http://www.hp.com/schemas/imaging/con/ledm/productusagedyn/2007/12/11"
)

// RootSuffix is what the root element's local name must end with.
const RootSuffix = "ProductUsageDyn"

// Prefixes the LEDM documents use. A document that never declares them still
// carries them as the element's namespace, so they are accepted as aliases.
const (
	prefixDictionaries    = "dd"
	prefixProductUsageDyn = "pudyn"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ErrParse is returned when a payload is not well-formed XML.
var ErrParse = errors.New("ledm: document parse failed")

// Document is the parsed subset of a ProductUsageDyn payload. Only direct
// children are read: pudyn subunits under the root and dd counters under each
// subunit. A repeated subunit or counter keeps its first occurrence.
type Document struct {
	Root    xml.Name
	Printer *Subunit
	Copy    *Subunit
	Fax     *Subunit
}

// Subunit groups the counters of one functional area.
type Subunit struct {
	TotalImpressions      *string
	MonochromeImpressions *string
	ColorImpressions      *string
}

func (d *Document) subunit(local string) **Subunit {
	switch local {
	case "PrinterSubunit":
		return &d.Printer
	case "CopyApplicationSubunit":
		return &d.Copy
	case "FaxApplicationSubunit":
		return &d.Fax
	}
	return nil
}

func (s *Subunit) counter(local string) **string {
	switch local {
	case "TotalImpressions":
		return &s.TotalImpressions
	case "MonochromeImpressions":
		return &s.MonochromeImpressions
	case "ColorImpressions":
		return &s.ColorImpressions
	}
	return nil
}

func inNamespace(name xml.Name, uri, prefix string) bool {
	return name.Space == uri || name.Space == prefix
}

func newDecoder(body []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(body, utf8BOM)))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// parseDocument parses body into a Document. Any XML error, including an
// empty body, trailing content or a second root, wraps ErrParse.
func parseDocument(body []byte) (*Document, error) {
	doc, err := walk(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return doc, nil
}

// IsProductUsageDyn reports whether body is well-formed XML whose root local
// name ends with RootSuffix. Namespace and prefix are ignored. Malformed input
// is an ordinary false, never an error.
func IsProductUsageDyn(body []byte) bool {
	doc, err := walk(body)
	if err != nil {
		return false
	}
	return strings.HasSuffix(doc.Root.Local, RootSuffix)
}

// walk reads the whole document so trailing garbage or unbalanced tags after
// the root still count as malformed. Depth 1 is the root, depth 2 a subunit,
// depth 3 a counter.
func walk(body []byte) (*Document, error) {
	dec := newDecoder(body)
	doc := &Document{}
	var (
		depth   int
		unit    *Subunit // subunit being filled, nil when skipping
		target  *string  // counter text being collected
		text    strings.Builder
		seenTop bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if seenTop {
					return nil, errors.New("multiple root elements")
				}
				seenTop = true
				doc.Root = t.Name
			case 2:
				unit = nil
				if !inNamespace(t.Name, NamespaceProductUsageDyn, prefixProductUsageDyn) {
					break
				}
				if slot := doc.subunit(t.Name.Local); slot != nil && *slot == nil {
					*slot = &Subunit{}
					unit = *slot
				}
			case 3:
				target = nil
				if unit == nil || !inNamespace(t.Name, NamespaceDictionaries, prefixDictionaries) {
					break
				}
				if slot := unit.counter(t.Name.Local); slot != nil && *slot == nil {
					target = new(string)
					*slot = target
					text.Reset()
				}
			}
		case xml.EndElement:
			if depth == 3 && target != nil {
				*target = text.String()
				target = nil
			}
			if depth == 2 {
				unit = nil
			}
			depth--
		case xml.CharData:
			switch {
			case depth == 0 && len(bytes.TrimSpace(t)) > 0:
				return nil, errors.New("text outside root element")
			case depth == 3 && target != nil:
				text.Write(t)
			}
		}
	}
	if !seenTop {
		return nil, errors.New("no root element")
	}
	return doc, nil
}

package format

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"unicode"
)

// XMLRoot is the document element of xml output.
const XMLRoot = "response"

// renderXML walks the JSON encoding of payload and mirrors it as XML:
// objects become nested elements, array items repeat the element of the
// field holding them, null becomes an empty element.
func renderXML(payload any, _ Options) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := writeXML(enc, dec, XMLRoot); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXML(enc *xml.Encoder, dec *json.Decoder, name string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	el := xml.StartElement{Name: xml.Name{Local: elementName(name)}}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			if err := enc.EncodeToken(el); err != nil {
				return err
			}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return err
				}
				key, ok := keyTok.(string)
				if !ok {
					return fmt.Errorf("unexpected object key %v", keyTok)
				}
				if err := writeXML(enc, dec, key); err != nil {
					return err
				}
			}
			if _, err := dec.Token(); err != nil {
				return err
			}
			return enc.EncodeToken(el.End())
		case '[':
			for dec.More() {
				if err := writeXML(enc, dec, name); err != nil {
					return err
				}
			}
			_, err := dec.Token()
			return err
		}
		return fmt.Errorf("unexpected delimiter %v", t)
	case nil:
		if err := enc.EncodeToken(el); err != nil {
			return err
		}
		return enc.EncodeToken(el.End())
	default:
		return enc.EncodeElement(scalarText(t), el)
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

// elementName maps a JSON key to a valid XML element name.
func elementName(key string) string {
	if key == "" {
		return "item"
	}
	var b strings.Builder
	for i, r := range key {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
		case i == 0 && unicode.IsDigit(r):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if strings.HasPrefix(strings.ToLower(name), "xml") {
		name = "_" + name
	}
	return name
}

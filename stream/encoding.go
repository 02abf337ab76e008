package stream

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// SystemEncoding is the encoding new channels start with.
const SystemEncoding = "utf-8"

// Encoding is a named text encoding. A nil *Encoding means raw bytes:
// each byte maps to the character with the same code point.
type Encoding struct {
	name string
	enc  encoding.Encoding
}

// Name returns the runtime name of the encoding, or "binary" for nil.
func (e *Encoding) Name() string {
	if e == nil {
		return "binary"
	}
	return e.name
}

// Same reports whether e and o name the same encoding.
func (e *Encoding) Same(o *Encoding) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.name == o.name
}

func (e *Encoding) newDecoder() *encoding.Decoder {
	return e.enc.NewDecoder()
}

func (e *Encoding) newEncoder() *encoding.Encoder {
	return encoding.ReplaceUnsupported(e.enc.NewEncoder())
}

// runtime names that neither index knows
var encodingAliases = map[string]string{
	"utf-8":      "UTF-8",
	"ascii":      "US-ASCII",
	"iso8859-1":  "ISO-8859-1",
	"iso8859-2":  "ISO-8859-2",
	"iso8859-3":  "ISO-8859-3",
	"iso8859-4":  "ISO-8859-4",
	"iso8859-5":  "ISO-8859-5",
	"iso8859-6":  "ISO-8859-6",
	"iso8859-7":  "ISO-8859-7",
	"iso8859-8":  "ISO-8859-8",
	"iso8859-9":  "ISO-8859-9",
	"iso8859-10": "ISO-8859-10",
	"iso8859-13": "ISO-8859-13",
	"iso8859-14": "ISO-8859-14",
	"iso8859-15": "ISO-8859-15",
	"iso8859-16": "ISO-8859-16",
	"cp437":      "IBM437",
	"cp850":      "IBM850",
	"cp866":      "IBM866",
	"cp1250":     "windows-1250",
	"cp1251":     "windows-1251",
	"cp1252":     "windows-1252",
	"cp1253":     "windows-1253",
	"cp1254":     "windows-1254",
	"cp1255":     "windows-1255",
	"cp1256":     "windows-1256",
	"cp1257":     "windows-1257",
	"cp1258":     "windows-1258",
	"koi8-r":     "KOI8-R",
	"koi8-u":     "KOI8-U",
	"shiftjis":   "Shift_JIS",
	"euc-jp":     "EUC-JP",
	"euc-kr":     "EUC-KR",
	"euc-cn":     "GBK",
	"gb2312":     "GBK",
	"big5":       "Big5",
	"iso2022-jp": "ISO-2022-JP",
	"macroman":   "macintosh",
	"utf-16":     "UTF-16BE",
	"utf-16be":   "UTF-16BE",
	"utf-16le":   "UTF-16LE",
	"unicode":    "UTF-16LE",
	"identity":   "",
	"binary":     "",
	"":           "",
}

// LookupEncoding resolves a runtime encoding name. "binary", "identity"
// and the empty string yield a nil *Encoding.
func LookupEncoding(name string) (*Encoding, error) {
	key := strings.ToLower(name)
	canonical, aliased := encodingAliases[key]
	if aliased && canonical == "" {
		return nil, nil
	}
	if !aliased {
		canonical = name
	}

	if strings.EqualFold(canonical, "UTF-8") {
		return &Encoding{name: SystemEncoding, enc: unicode.UTF8}, nil
	}
	if strings.EqualFold(canonical, "UTF-16LE") && key == "unicode" {
		return &Encoding{name: key, enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}, nil
	}

	enc, err := ianaindex.IANA.Encoding(canonical)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(canonical)
	}
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	return &Encoding{name: key, enc: enc}, nil
}

// MustEncoding is LookupEncoding for names known to exist.
func MustEncoding(name string) *Encoding {
	e, err := LookupEncoding(name)
	if err != nil {
		panic(err)
	}
	return e
}

// EncodingNames lists the runtime names understood by LookupEncoding.
func EncodingNames() []string {
	names := make([]string, 0, len(encodingAliases))
	for k := range encodingAliases {
		if k == "" {
			continue
		}
		names = append(names, k)
	}
	return names
}

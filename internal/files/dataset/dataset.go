// Package dataset turns uploaded XML and Excel files into flat records keyed
// by dotted paths, ready to be charted.
package dataset

import (
	"encoding/json"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
)

// ErrUnsupportedFormat is returned for payloads that are neither XML nor Excel.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Kind of a scalar value.
type Kind uint8

const (
	// KindString is any value that does not parse as a number.
	KindString Kind = iota
	// KindNumber is a float64 value.
	KindNumber
)

// Scalar is one leaf value.
type Scalar struct {
	Kind Kind
	Str  string
	Num  float64
}

// String makes a string scalar.
func String(v string) Scalar {
	return Scalar{Kind: KindString, Str: v}
}

// Number makes a numeric scalar.
func Number(v float64) Scalar {
	return Scalar{Kind: KindNumber, Num: v}
}

// decimalNumber matches plain decimal notation with an optional exponent.
// NaN, Inf, hex floats and digit separators stay strings.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseScalar trims v and returns a number when it is a finite decimal.
func ParseScalar(v string) Scalar {
	v = strings.TrimSpace(v)
	if v == "" {
		return String("")
	}
	if !decimalNumber.MatchString(v) {
		return String(v)
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
		return Number(n)
	}

	return String(v)
}

// IsZero reports whether the scalar is blank or numeric zero.
func (s Scalar) IsZero() bool {
	if s.Kind == KindNumber {
		return s.Num == 0
	}
	return s.Str == ""
}

// MarshalJSON renders numbers as JSON numbers and strings as JSON strings.
// Non-finite numbers have no JSON form and are rendered as strings.
func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.Kind == KindNumber {
		if math.IsInf(s.Num, 0) || math.IsNaN(s.Num) {
			return json.Marshal(strconv.FormatFloat(s.Num, 'g', -1, 64))
		}
		return json.Marshal(s.Num)
	}
	return json.Marshal(s.Str)
}

// Record maps a dotted path to its value.
type Record map[string]Scalar

// Dataset is the parsed content of one file.
type Dataset struct {
	Records []Record `json:"records"`
	// Fields lists every chartable path once, sorted.
	Fields []string `json:"fields"`
}

// bookkeeping keys never offered as chart fields
var excludedFields = map[string]struct{}{
	"id":         {},
	"uploaddate": {},
	"size":       {},
	"createdat":  {},
	"updatedat":  {},
}

const (
	mimeXML      = "text/xml"
	mimeXMLApp   = "application/xml"
	mimeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS      = "application/vnd.ms-excel"
	extXML       = ".xml"
	extXLSX      = ".xlsx"
	extXLS       = ".xls"
	mimeParamSep = ";"
)

func normalizeMIME(contentType string) string {
	ct, _, _ := strings.Cut(contentType, mimeParamSep)
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsXML reports whether the upload is an XML document.
func IsXML(contentType, filename string) bool {
	switch normalizeMIME(contentType) {
	case mimeXML, mimeXMLApp:
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), extXML)
}

// IsExcel reports whether the upload is a spreadsheet.
func IsExcel(contentType, filename string) bool {
	switch normalizeMIME(contentType) {
	case mimeXLSX, mimeXLS:
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == extXLSX || ext == extXLS
}

// Supported reports whether Parse can handle the upload.
func Supported(contentType, filename string) bool {
	return IsXML(contentType, filename) || IsExcel(contentType, filename)
}

// Parse reads r as XML or Excel, chosen by content type then extension.
func Parse(contentType, filename string, r io.Reader) (*Dataset, error) {
	var (
		records []Record
		err     error
	)
	switch {
	case IsExcel(contentType, filename):
		records, err = parseExcel(r)
	case IsXML(contentType, filename):
		records, err = parseXML(r)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "content type %q, filename %q", contentType, filename)
	}
	if err != nil {
		return nil, err
	}

	return &Dataset{Records: records, Fields: fieldsOf(records)}, nil
}

func fieldsOf(records []Record) []string {
	seen := map[string]struct{}{}
	fields := []string{}
	for _, rec := range records {
		for path := range rec {
			if _, ok := seen[path]; ok || excluded(path) {
				continue
			}
			seen[path] = struct{}{}
			fields = append(fields, path)
		}
	}
	sort.Strings(fields)

	return fields
}

// excluded matches on the last named segment, so "meta.0.id" is excluded too.
func excluded(path string) bool {
	segs := strings.Split(path, ".")
	for i := len(segs) - 1; i >= 0; i-- {
		if _, err := strconv.Atoi(segs[i]); err == nil {
			continue
		}
		_, ok := excludedFields[strings.ToLower(strings.TrimPrefix(segs[i], "@"))]
		return ok
	}

	return false
}

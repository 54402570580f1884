package dataset

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/xuri/excelize/v2"
)

// ErrLegacyWorkbook is returned for binary .xls workbooks, which are stored
// but cannot be read. Only OOXML workbooks are parsed.
var ErrLegacyWorkbook = errors.New("legacy .xls workbook")

// oleSignature starts every compound document, the container of .xls files.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// parseExcel reads the first sheet. The first row names the columns.
func parseExcel(r io.Reader) (records []Record, err error) {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(oleSignature)); bytes.Equal(head, oleSignature) {
		return nil, ErrLegacyWorkbook
	}

	f, err := excelize.OpenReader(br)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheets[0])
	}
	if len(rows) < 2 {
		return nil, errors.Errorf("sheet %q has no data rows", sheets[0])
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, row := range rows[1:] {
		rec := Record{}
		blank := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			val := Number(0)
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				val = ParseScalar(row[i])
			}
			if !val.IsZero() {
				blank = false
			}
			rec[h] = val
		}
		if !blank {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, errors.Errorf("sheet %q has no data rows", sheets[0])
	}

	return records, nil
}

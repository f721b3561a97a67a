package csvrow

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FieldCount is the number of columns every data row must carry:
// title, type, value, category.
const FieldCount = 4

var ErrFieldCount = errors.New("too many fields")

// Row is one decoded data line with every field trimmed.
type Row struct {
	Line     int
	Title    string
	Type     string
	Value    string
	Category string
}

// Complete reports whether the row has the fields a transaction needs.
// Category may be empty.
func (r Row) Complete() bool {
	return r.Title != "" && r.Type != "" && r.Value != ""
}

// RowError flags a data line that could not be mapped onto a Row.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader decodes comma separated rows from a stream. The first line is a
// header and is always skipped.
type Reader struct {
	r          *csv.Reader
	headerRead bool
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Next returns the next data row. Missing trailing fields read as empty.
// It returns io.EOF once the stream is exhausted and a *RowError when a line
// has more than FieldCount fields; the reader stays usable after a *RowError.
func (r *Reader) Next() (Row, error) {
	if !r.headerRead {
		r.headerRead = true
		if _, err := r.r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return Row{}, io.EOF
			}
			return Row{}, fmt.Errorf("failed to read header: %w", err)
		}
	}

	record, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, fmt.Errorf("failed to read row: %w", err)
	}
	line, _ := r.r.FieldPos(0)

	if len(record) > FieldCount {
		return Row{}, &RowError{
			Line: line,
			Err:  fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(record), FieldCount),
		}
	}

	var fields [FieldCount]string
	for i, f := range record {
		fields[i] = strings.TrimSpace(f)
	}
	return Row{
		Line:     line,
		Title:    fields[0],
		Type:     fields[1],
		Value:    fields[2],
		Category: fields[3],
	}, nil
}

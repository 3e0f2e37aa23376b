package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tasking/internal/canonical"
	"github.com/roach88/tasking/internal/task"
)

// timeLayout is fixed-width UTC with microseconds so that text columns sort
// chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t for a TEXT column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a TEXT column written by FormatTime. RFC 3339 values
// written by other tools are accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

// EncodeJSON returns the canonical JSON of v for storage, or nil when v is
// absent (nil, or an object whose members are all null).
func EncodeJSON(v any) ([]byte, error) {
	data, err := canonical.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

// DecodeJSON parses stored JSON into dst. Numbers decode as json.Number so
// large integers keep their precision. Empty data leaves dst untouched.
func DecodeJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dst)
}

// Columns holds the JSON-encoded columns of a task row. Nil means SQL NULL.
type Columns struct {
	Location     []byte
	Flight       []byte
	CustomerHint []byte
	Checklist    []byte
}

// EncodeColumns serializes the structured fields of t.
func EncodeColumns(t task.Task) (Columns, error) {
	var cols Columns
	var err error

	if cols.Location, err = EncodeJSON(t.Location); err != nil {
		return Columns{}, fmt.Errorf("marshal location: %w", err)
	}
	if cols.Flight, err = EncodeJSON(t.Flight); err != nil {
		return Columns{}, fmt.Errorf("marshal flight: %w", err)
	}
	if cols.CustomerHint, err = EncodeJSON(t.CustomerHint); err != nil {
		return Columns{}, fmt.Errorf("marshal customer_hint: %w", err)
	}

	checklist := t.Checklist
	if checklist == nil {
		checklist = []task.ChecklistItem{}
	}
	if cols.Checklist, err = canonical.Marshal(checklist); err != nil {
		return Columns{}, fmt.Errorf("marshal checklist: %w", err)
	}

	return cols, nil
}

// DecodeColumns fills the structured fields of t from stored columns.
func DecodeColumns(t *task.Task, cols Columns) error {
	if len(cols.Location) > 0 {
		t.Location = &task.Location{}
		if err := DecodeJSON(cols.Location, t.Location); err != nil {
			return fmt.Errorf("unmarshal location: %w", err)
		}
	}
	if len(cols.Flight) > 0 {
		t.Flight = &task.Flight{}
		if err := DecodeJSON(cols.Flight, t.Flight); err != nil {
			return fmt.Errorf("unmarshal flight: %w", err)
		}
	}
	if err := DecodeJSON(cols.CustomerHint, &t.CustomerHint); err != nil {
		return fmt.Errorf("unmarshal customer_hint: %w", err)
	}
	if err := DecodeJSON(cols.Checklist, &t.Checklist); err != nil {
		return fmt.Errorf("unmarshal checklist: %w", err)
	}
	if t.Checklist == nil {
		t.Checklist = []task.ChecklistItem{}
	}
	return nil
}

// nullableBytes converts a JSON column to a driver value; nil becomes NULL.
func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

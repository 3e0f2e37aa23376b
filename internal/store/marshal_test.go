package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasking/internal/task"
)

func TestFormatTime_SortsChronologically(t *testing.T) {
	a := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	c := a.Add(2 * time.Second)

	assert.Less(t, FormatTime(a), FormatTime(b))
	assert.Less(t, FormatTime(b), FormatTime(c))
	assert.Equal(t, "2025-01-01T09:00:00.000000Z", FormatTime(a))
}

func TestParseTime(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	ts := time.Date(2025, 1, 1, 10, 0, 0, 1000, loc)

	got, err := ParseTime(FormatTime(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
	assert.Equal(t, time.UTC, got.Location())

	got, err = ParseTime("2025-01-01T10:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestEncodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected []byte
	}{
		{"nil", nil, nil},
		{"nil location", (*task.Location)(nil), nil},
		{"empty location", &task.Location{}, []byte(`{}`)},
		{"location", &task.Location{Gate: "B12", Terminal: "T1"}, []byte(`{"gate":"B12","terminal":"T1"}`)},
		{"all-null map", map[string]any{"a": nil}, []byte(`{}`)},
		{"nil map", map[string]any(nil), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestColumnsRoundTrip(t *testing.T) {
	std := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	in := task.Task{
		Location:     &task.Location{Terminal: "T2", Zone: "Z"},
		Flight:       &task.Flight{IATA: "LH400", STD: &std},
		CustomerHint: map[string]any{"partySize": 2},
		Checklist:    []task.ChecklistItem{{Key: "b", Title: "B"}, {Key: "a", Title: "A", Required: true}},
	}

	cols, err := EncodeColumns(in)
	require.NoError(t, err)
	assert.Equal(t, `{"iata":"LH400","std":"2025-03-01T12:30:00Z"}`, string(cols.Flight))
	assert.Equal(t, `[{"done":false,"key":"b","required":false,"title":"B"},{"done":false,"key":"a","required":true,"title":"A"}]`, string(cols.Checklist))

	var out task.Task
	require.NoError(t, DecodeColumns(&out, cols))
	assert.Equal(t, in.Location, out.Location)
	assert.Equal(t, "LH400", out.Flight.IATA)
	assert.True(t, std.Equal(*out.Flight.STD))
	assert.Equal(t, in.Checklist, out.Checklist)
}

func TestEncodeColumns_NilChecklist(t *testing.T) {
	cols, err := EncodeColumns(task.Task{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(cols.Checklist))
	assert.Nil(t, cols.Location)
	assert.Nil(t, cols.CustomerHint)
}

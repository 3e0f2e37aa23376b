package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tasking/internal/testutil"
)

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}

	a := g.Generate()
	b := g.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("t1", "t2")
	assert.Equal(t, "t1", g.Generate())
	assert.Equal(t, "t2", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestStamp(t *testing.T) {
	clock := testutil.NewDeterministicClockAt(testutil.Epoch, 1500*time.Nanosecond)

	got := stamp(clock, time.Time{})
	assert.Equal(t, testutil.Epoch.Add(time.Microsecond), got)

	floor := testutil.Epoch.Add(time.Hour)
	assert.Equal(t, floor, stamp(clock, floor))
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, SystemClock{}.Now().Location())
}

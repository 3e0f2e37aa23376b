package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "task-0001", g.Generate())
	assert.Equal(t, "task-0002", g.Generate())

	g = NewSequentialIDs("oi")
	assert.Equal(t, "oi-0001", g.Generate())
}

package schema

import (
	"testing"

	"cuelang.org/go/cue"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func cuePath(def string) cue.Path {
	return cue.ParsePath(def)
}

package canonical

import (
	"io"
	"math"
	"strings"
)

func nanValue() float64 { return math.NaN() }

func stringsReader(s string) io.Reader { return strings.NewReader(s) }
